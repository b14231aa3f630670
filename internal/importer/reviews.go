// Package importer loads reviews from an XLSX workbook. Products are matched by
// name and created when missing; reviewers with an email become accounts.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ikkim/productreview-backend/internal/app/model"
	"github.com/ikkim/productreview-backend/internal/app/repository"
	"github.com/ikkim/productreview-backend/internal/app/service"
	"github.com/ikkim/productreview-backend/internal/rating"
	"github.com/ikkim/productreview-backend/pkg/logger"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// 헤더 이름 (대소문자 무시). product 는 필수, 나머지는 선택
const (
	colProduct       = "product"
	colCategory      = "category"
	colPrice         = "price"
	colReviewerEmail = "reviewer_email"
	colReviewerName  = "reviewer_name"
	colRating        = "rating"
	colComment       = "comment"
	colTags          = "tags"
	colCreatedAt     = "created_at"
)

const createdAtLayout = "2006-01-02"

// Row 시트의 한 줄을 검증한 결과
type Row struct {
	Line          int // 시트 상의 행 번호 (1부터, 헤더 포함)
	Product       string
	Category      string
	Price         float64
	ReviewerEmail string
	ReviewerName  string
	Rating        *int
	Comment       *string
	Tags          []string
	CreatedAt     time.Time
}

// Skipped 건너뛴 행과 사유
type Skipped struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// Report 가져오기 결과
type Report struct {
	Rows            int       `json:"rows"`
	Imported        int       `json:"imported"`
	Duplicates      int       `json:"duplicates"`
	ProductsCreated int       `json:"products_created"`
	Skipped         []Skipped `json:"skipped"`
}

// ReadRows 첫 번째 시트를 읽는다. 잘못된 행은 Skipped 에 담고 계속 진행한다.
func ReadRows(r io.Reader) ([]Row, []Skipped, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open XLSX file: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, nil, errors.New("no sheets found in XLSX file")
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil, errors.New("no data found in XLSX file")
	}

	columns := make(map[string]int)
	for i, header := range rows[0] {
		columns[strings.ToLower(strings.TrimSpace(header))] = i
	}
	if _, ok := columns[colProduct]; !ok {
		return nil, nil, fmt.Errorf("missing %q column", colProduct)
	}

	var (
		parsed  []Row
		skipped []Skipped
	)
	for i, cells := range rows[1:] {
		line := i + 2
		cell := func(name string) string {
			idx, ok := columns[name]
			if !ok || idx >= len(cells) {
				return ""
			}
			return strings.TrimSpace(cells[idx])
		}

		row, reason := parseRow(line, cell)
		if reason != "" {
			skipped = append(skipped, Skipped{Line: line, Reason: reason})
			continue
		}
		parsed = append(parsed, row)
	}
	return parsed, skipped, nil
}

func parseRow(line int, cell func(string) string) (Row, string) {
	row := Row{
		Line:          line,
		Product:       cell(colProduct),
		Category:      cell(colCategory),
		ReviewerEmail: strings.ToLower(cell(colReviewerEmail)),
		ReviewerName:  cell(colReviewerName),
	}
	if row.Product == "" {
		return row, "product is empty"
	}
	if row.ReviewerEmail == "" && row.ReviewerName == "" {
		return row, "reviewer_email or reviewer_name is required"
	}

	if raw := cell(colPrice); raw != "" {
		price, err := strconv.ParseFloat(raw, 64)
		if err != nil || price < 0 {
			return row, fmt.Sprintf("invalid price %q", raw)
		}
		row.Price = price
	}

	if raw := cell(colRating); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || !rating.ValidRating(value) {
			return row, fmt.Sprintf("invalid rating %q", raw)
		}
		row.Rating = &value
	}

	if comment := cell(colComment); comment != "" {
		if utf8.RuneCountInString(comment) > service.MaxCommentLength {
			return row, "comment is too long"
		}
		row.Comment = &comment
	}
	if row.Rating == nil && row.Comment == nil {
		return row, "rating or comment is required"
	}

	if raw := cell(colTags); raw != "" {
		row.Tags = rating.NormalizeTags(strings.Split(raw, ","))
		if len(row.Tags) > service.MaxTagsPerReview {
			return row, "too many tags"
		}
		for _, t := range row.Tags {
			if utf8.RuneCountInString(t) > service.MaxTagLength {
				return row, fmt.Sprintf("tag %q is too long", t)
			}
		}
	}

	if raw := cell(colCreatedAt); raw != "" {
		createdAt, err := time.Parse(createdAtLayout, raw)
		if err != nil {
			return row, fmt.Sprintf("invalid created_at %q", raw)
		}
		row.CreatedAt = createdAt
	}
	return row, ""
}

// Importer 검증된 행을 DB 에 저장한다. 이미 있는 (작성자, 상품) 리뷰는 건너뛴다.
type Importer struct {
	users      repository.UserRepository
	products   repository.ProductRepository
	reviews    repository.ReviewRepository
	aggregates service.AggregateService
}

func NewImporter(
	users repository.UserRepository,
	products repository.ProductRepository,
	reviews repository.ReviewRepository,
	aggregates service.AggregateService,
) *Importer {
	return &Importer{
		users:      users,
		products:   products,
		reviews:    reviews,
		aggregates: aggregates,
	}
}

// Import 행을 저장한 뒤 영향받은 상품의 집계와 태그를 다시 계산한다.
func (im *Importer) Import(ctx context.Context, rows []Row) (*Report, error) {
	report := &Report{Rows: len(rows)}
	products := make(map[string]*model.Product)
	touched := make(map[uint]bool)

	for _, row := range rows {
		product, created, err := im.resolveProduct(ctx, products, row)
		if err != nil {
			return report, fmt.Errorf("line %d: %w", row.Line, err)
		}
		if created {
			report.ProductsCreated++
		}

		review := &model.Review{
			ProductID:     product.ID,
			ReviewerName:  row.ReviewerName,
			ReviewerEmail: row.ReviewerEmail,
			Rating:        row.Rating,
			Comment:       row.Comment,
			Tags:          row.Tags,
			CreatedAt:     row.CreatedAt,
		}

		duplicate, err := im.attachReviewer(ctx, review, row)
		if err != nil {
			return report, fmt.Errorf("line %d: %w", row.Line, err)
		}
		if duplicate {
			report.Duplicates++
			continue
		}

		if err := im.reviews.Create(ctx, review); err != nil {
			return report, fmt.Errorf("line %d: create review: %w", row.Line, err)
		}
		report.Imported++
		touched[product.ID] = true
	}

	for productID := range touched {
		if _, err := im.aggregates.RebuildProduct(ctx, productID); err != nil {
			return report, fmt.Errorf("rebuild product %d: %w", productID, err)
		}
	}

	logger.Info("Review import finished", map[string]interface{}{
		"rows":             report.Rows,
		"imported":         report.Imported,
		"duplicates":       report.Duplicates,
		"products_created": report.ProductsCreated,
	})
	return report, nil
}

func (im *Importer) resolveProduct(ctx context.Context, cache map[string]*model.Product, row Row) (*model.Product, bool, error) {
	if product, ok := cache[row.Product]; ok {
		return product, false, nil
	}

	product, err := im.products.FindByName(ctx, row.Product)
	if err == nil {
		cache[row.Product] = product
		return product, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("find product %q: %w", row.Product, err)
	}

	product = &model.Product{Name: row.Product, Price: row.Price}
	if row.Category != "" {
		category := row.Category
		product.Category = &category
	}
	if err := im.products.Create(ctx, product); err != nil {
		return nil, false, fmt.Errorf("create product %q: %w", row.Product, err)
	}
	cache[row.Product] = product
	return product, true, nil
}

// attachReviewer 이메일이 있으면 계정을 찾거나 만들어 연결한다. 중복이면 true.
func (im *Importer) attachReviewer(ctx context.Context, review *model.Review, row Row) (bool, error) {
	if row.ReviewerEmail == "" {
		// 이름만 있는 리뷰는 중복을 판별할 수 없으므로 항상 추가
		return false, nil
	}

	user, err := im.users.FindByEmail(ctx, row.ReviewerEmail)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return false, fmt.Errorf("find reviewer %q: %w", row.ReviewerEmail, err)
		}
		name := row.ReviewerName
		if name == "" {
			name = strings.SplitN(row.ReviewerEmail, "@", 2)[0]
		}
		user = &model.User{Email: row.ReviewerEmail, Name: name, Role: model.RoleUser}
		if err := im.users.UpsertByEmail(ctx, user); err != nil {
			return false, fmt.Errorf("create reviewer %q: %w", row.ReviewerEmail, err)
		}
	}
	review.UserID = &user.ID

	if _, err := im.reviews.FindByUserAndProduct(ctx, user.ID, review.ProductID); err == nil {
		return true, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}
	if _, err := im.reviews.FindByReviewerAndProduct(ctx, row.ReviewerEmail, review.ProductID); err == nil {
		return true, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}
	return false, nil
}
