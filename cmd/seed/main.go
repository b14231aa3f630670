package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/ikkim/productreview-backend/config"
	"github.com/ikkim/productreview-backend/internal/app/model"
	"github.com/ikkim/productreview-backend/internal/app/repository"
	"github.com/ikkim/productreview-backend/internal/app/service"
	"github.com/ikkim/productreview-backend/internal/db"
	"github.com/ikkim/productreview-backend/internal/importer"
	"github.com/ikkim/productreview-backend/internal/rating"
	"github.com/ikkim/productreview-backend/pkg/util"
	"gorm.io/gorm"
)

// Usage:
//
//	go run ./cmd/seed                 데모 사용자/상품/리뷰 생성
//	go run ./cmd/seed reviews.xlsx    XLSX 리뷰 가져오기
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	policy, err := rating.ParseTotalPolicy(cfg.Review.TotalPolicy)
	if err != nil {
		log.Fatal("Invalid review total policy:", err)
	}

	if err := db.Initialize(&cfg.Database); err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	conn := db.GetDB()
	userRepo := repository.NewUserRepository(conn)
	productRepo := repository.NewProductRepository(conn)
	reviewRepo := repository.NewReviewRepository(conn)
	tagRepo := repository.NewReviewTagRepository(conn)
	aggregates := service.NewAggregateService(conn, productRepo, reviewRepo, tagRepo, policy)
	imp := importer.NewImporter(userRepo, productRepo, reviewRepo, aggregates)

	ctx := context.Background()
	if len(os.Args) > 1 {
		importFile(ctx, imp, os.Args[1])
		return
	}

	if err := seedDemo(ctx, userRepo, productRepo, imp); err != nil {
		log.Fatal("Failed to seed demo data:", err)
	}

	// 시드 전후로 남아 있던 데이터까지 포함해 전체 재계산
	rebuilt, err := aggregates.RebuildAll(ctx)
	if err != nil {
		log.Fatal("Failed to rebuild aggregates:", err)
	}
	fmt.Printf("Aggregates rebuilt for %d products\n", rebuilt)
}

func importFile(ctx context.Context, imp *importer.Importer, filePath string) {
	fmt.Printf("Reading XLSX file: %s\n", filePath)
	f, err := os.Open(filePath)
	if err != nil {
		log.Fatal("Failed to open XLSX:", err)
	}
	defer f.Close()

	rows, skipped, err := importer.ReadRows(f)
	if err != nil {
		log.Fatal("Failed to read XLSX:", err)
	}

	fmt.Printf("\nSummary:\n")
	fmt.Printf("  Valid rows: %d\n", len(rows))
	fmt.Printf("  Skipped rows: %d\n", len(skipped))
	for _, s := range skipped {
		fmt.Printf("    line %d: %s\n", s.Line, s.Reason)
	}

	// 사용자 확인
	fmt.Print("Do you want to proceed with the import? (yes/no): ")
	var confirm string
	fmt.Scanln(&confirm)
	if confirm != "yes" && confirm != "y" {
		fmt.Println("Import cancelled.")
		return
	}

	report, err := imp.Import(ctx, rows)
	if err != nil {
		log.Fatal("Failed to import reviews:", err)
	}

	fmt.Println("Import completed successfully!")
	fmt.Printf("  Imported: %d\n", report.Imported)
	fmt.Printf("  Duplicates: %d\n", report.Duplicates)
	fmt.Printf("  Products created: %d\n", report.ProductsCreated)
}

type demoProduct struct {
	Name, Description, Category, ImageURL string
	Price                                 float64
}

var demoUsers = []model.User{
	{Name: "Admin", Email: "admin@example.com", Role: model.RoleAdmin},
	{Name: "John Doe", Email: "john.doe@example.com", Role: model.RoleUser},
	{Name: "Jane Smith", Email: "jane.smith@example.com", Role: model.RoleUser},
	{Name: "Mike Johnson", Email: "mike.johnson@example.com", Role: model.RoleUser},
	{Name: "Sarah Wilson", Email: "sarah.wilson@example.com", Role: model.RoleUser},
}

const demoPassword = "password123"

var demoProducts = []demoProduct{
	{Name: "iPhone 15 Pro", Description: "Latest iPhone with A17 Pro chip and titanium design", Price: 999, Category: "Electronics", ImageURL: "https://via.placeholder.com/300x300.png"},
	{Name: "Samsung Galaxy S24", Description: "Flagship Android phone with AI features", Price: 899, Category: "Electronics", ImageURL: "https://via.placeholder.com/300x300.png"},
	{Name: "MacBook Air M3", Description: "Lightweight laptop with M3 chip", Price: 1199, Category: "Computers", ImageURL: "https://via.placeholder.com/300x300.png"},
	{Name: "Sony WH-1000XM5", Description: "Premium noise-canceling headphones", Price: 399, Category: "Audio", ImageURL: "https://via.placeholder.com/300x300.png"},
	{Name: "iPad Pro 12.9\"", Description: "Professional tablet with M2 chip", Price: 1099, Category: "Tablets", ImageURL: "https://via.placeholder.com/300x300.png"},
	{Name: "Dell XPS 13", Description: "Ultra-portable Windows laptop", Price: 999, Category: "Computers", ImageURL: "https://via.placeholder.com/300x300.png"},
	{Name: "AirPods Pro 2", Description: "Wireless earbuds with active noise cancellation", Price: 249, Category: "Audio", ImageURL: "https://via.placeholder.com/300x300.png"},
	{Name: "Nintendo Switch OLED", Description: "Gaming console with OLED screen", Price: 349, Category: "Gaming", ImageURL: "https://via.placeholder.com/300x300.png"},
}

func demoReviews() []importer.Row {
	score := func(v int) *int { return &v }
	text := func(v string) *string { return &v }
	return []importer.Row{
		{Product: "iPhone 15 Pro", ReviewerEmail: "john.doe@example.com", Rating: score(5),
			Comment: text("Amazing phone! The camera quality is outstanding and the titanium build feels premium."),
			Tags:    []string{"premium", "camera", "fast"}},
		{Product: "iPhone 15 Pro", ReviewerEmail: "jane.smith@example.com", Rating: score(4),
			Comment: text("Great phone but quite expensive. Battery life could be better."),
			Tags:    []string{"expensive", "battery"}},
		{Product: "Samsung Galaxy S24", ReviewerEmail: "mike.johnson@example.com", Rating: score(5),
			Comment: text("Best Android phone I've ever used. The AI features are incredible!"),
			Tags:    []string{"android", "ai", "best"}},
		{Product: "MacBook Air M3", ReviewerEmail: "sarah.wilson@example.com", Rating: score(5),
			Comment: text("Perfect laptop for work and travel. Light weight and amazing performance."),
			Tags:    []string{"lightweight", "performance", "work"}},
		{Product: "Sony WH-1000XM5", ReviewerEmail: "john.doe@example.com", Rating: score(4),
			Comment: text("Excellent noise cancellation. Great for flights and commuting."),
			Tags:    []string{"noise-canceling", "travel", "commute"}},
		{Product: "AirPods Pro 2", ReviewerEmail: "jane.smith@example.com",
			Comment: text("Fits well, still deciding on a rating.")},
	}
}

func seedDemo(
	ctx context.Context,
	users repository.UserRepository,
	products repository.ProductRepository,
	imp *importer.Importer,
) error {
	hash, err := util.HashPassword(demoPassword)
	if err != nil {
		return err
	}
	for _, u := range demoUsers {
		user := u
		user.PasswordHash = hash
		if err := users.UpsertByEmail(ctx, &user); err != nil {
			return fmt.Errorf("upsert user %s: %w", user.Email, err)
		}
	}
	fmt.Printf("Users seeded: %d (password: %s)\n", len(demoUsers), demoPassword)

	created := 0
	for _, p := range demoProducts {
		if _, err := products.FindByName(ctx, p.Name); err == nil {
			continue
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		category := p.Category
		product := &model.Product{
			Name:        p.Name,
			Description: p.Description,
			Price:       p.Price,
			Category:    &category,
			ImageURL:    p.ImageURL,
		}
		if err := products.Create(ctx, product); err != nil {
			return fmt.Errorf("create product %s: %w", p.Name, err)
		}
		created++
	}
	fmt.Printf("Products seeded: %d new\n", created)

	report, err := imp.Import(ctx, demoReviews())
	if err != nil {
		return err
	}
	fmt.Printf("Reviews seeded: %d new, %d already present\n", report.Imported, report.Duplicates)
	return nil
}
