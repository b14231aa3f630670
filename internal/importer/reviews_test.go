package importer

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ikkim/productreview-backend/internal/app/model"
	"github.com/ikkim/productreview-backend/internal/app/repository"
	"github.com/ikkim/productreview-backend/internal/app/service"
	"github.com/ikkim/productreview-backend/internal/db"
	"github.com/ikkim/productreview-backend/internal/rating"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

var header = []interface{}{"Product", "Category", "Price", "Reviewer_Email", "Reviewer_Name", "Rating", "Comment", "Tags", "Created_At"}

func workbook(t *testing.T, rows ...[]interface{}) *bytes.Buffer {
	f := excelize.NewFile()
	t.Cleanup(func() { f.Close() })

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		row := row
		cellRef, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cellRef, &row))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestReadRows(t *testing.T) {
	buf := workbook(t,
		header,
		[]interface{}{"Kettle", "kitchen", "39.9", "A@Example.com", "Ann", "5", "Boils fast", "Fast, fast ,Quiet", "2026-03-01"},
		[]interface{}{"Kettle", "", "", "", "Guest", "", "Text only"},
		[]interface{}{"", "", "", "b@example.com", "", "4"},
		[]interface{}{"Kettle", "", "", "c@example.com", "", "9"},
		[]interface{}{"Kettle", "", "", "d@example.com"},
		[]interface{}{"Kettle", "", "", "e@example.com", "", "3", "", "", "03/01/2026"},
		[]interface{}{"Kettle", "", "abc", "f@example.com", "", "3"},
	)

	rows, skipped, err := ReadRows(buf)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	first := rows[0]
	assert.Equal(t, 2, first.Line)
	assert.Equal(t, "a@example.com", first.ReviewerEmail)
	assert.Equal(t, 39.9, first.Price)
	require.NotNil(t, first.Rating)
	assert.Equal(t, 5, *first.Rating)
	assert.Equal(t, []string{"fast", "fast", "quiet"}, first.Tags)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), first.CreatedAt)

	assert.Nil(t, rows[1].Rating)
	require.NotNil(t, rows[1].Comment)
	assert.Equal(t, "Text only", *rows[1].Comment)

	lines := make([]int, 0, len(skipped))
	for _, s := range skipped {
		lines = append(lines, s.Line)
		assert.NotEmpty(t, s.Reason)
	}
	assert.Equal(t, []int{4, 5, 6, 7, 8}, lines)
}

func TestReadRows_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input *bytes.Buffer
	}{
		{name: "Not a workbook", input: bytes.NewBufferString("plain text")},
		{name: "Missing product column", input: workbook(t, []interface{}{"Rating", "Comment"}, []interface{}{"5", "ok"})},
		{name: "Empty sheet", input: workbook(t)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ReadRows(tt.input)
			assert.Error(t, err)
		})
	}
}

func setupImporter(t *testing.T) (*Importer, *gorm.DB) {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupTestDB(testDB) })

	userRepo := repository.NewUserRepository(testDB)
	productRepo := repository.NewProductRepository(testDB)
	reviewRepo := repository.NewReviewRepository(testDB)
	tagRepo := repository.NewReviewTagRepository(testDB)
	aggregates := service.NewAggregateService(testDB, productRepo, reviewRepo, tagRepo, rating.TotalAll)

	return NewImporter(userRepo, productRepo, reviewRepo, aggregates), testDB
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func TestImporter_Import(t *testing.T) {
	importer, testDB := setupImporter(t)
	ctx := context.Background()

	existing := &model.Product{Name: "Blender", Price: 50}
	require.NoError(t, testDB.Create(existing).Error)

	rows := []Row{
		{Line: 2, Product: "Blender", ReviewerEmail: "ann@example.com", ReviewerName: "Ann", Rating: intPtr(5), Tags: []string{"fast", "loud"}},
		{Line: 3, Product: "Blender", ReviewerEmail: "bob@example.com", Rating: intPtr(4), Tags: []string{"fast"}},
		{Line: 4, Product: "Blender", ReviewerName: "Walk-in", Comment: strPtr("Text only")},
		{Line: 5, Product: "Toaster", Category: "kitchen", Price: 25, ReviewerEmail: "ann@example.com", Rating: intPtr(2)},
		{Line: 6, Product: "Blender", ReviewerEmail: "ann@example.com", Rating: intPtr(1)},
	}

	report, err := importer.Import(ctx, rows)
	require.NoError(t, err)
	assert.Equal(t, 5, report.Rows)
	assert.Equal(t, 4, report.Imported)
	assert.Equal(t, 1, report.Duplicates)
	assert.Equal(t, 1, report.ProductsCreated)

	var blender model.Product
	require.NoError(t, testDB.First(&blender, existing.ID).Error)
	assert.Equal(t, 4.5, blender.AverageRating)
	assert.Equal(t, 3, blender.TotalReviews)

	var toaster model.Product
	require.NoError(t, testDB.Where("name = ?", "Toaster").First(&toaster).Error)
	require.NotNil(t, toaster.Category)
	assert.Equal(t, "kitchen", *toaster.Category)
	assert.Equal(t, 2.0, toaster.AverageRating)

	var users int64
	require.NoError(t, testDB.Model(&model.User{}).Count(&users).Error)
	assert.Equal(t, int64(2), users)

	var bob model.User
	require.NoError(t, testDB.Where("email = ?", "bob@example.com").First(&bob).Error)
	assert.Equal(t, "bob", bob.Name)
	assert.Equal(t, model.RoleUser, bob.Role)

	var tags []model.ReviewTag
	require.NoError(t, testDB.Where("product_id = ?", existing.ID).Order("tag_name").Find(&tags).Error)
	require.Len(t, tags, 2)
	assert.Equal(t, "fast", tags[0].TagName)
	assert.Equal(t, 2, tags[0].Count)

	// 같은 파일을 다시 가져오면 계정 리뷰는 모두 중복
	again, err := importer.Import(ctx, rows)
	require.NoError(t, err)
	assert.Equal(t, 4, again.Duplicates)
	assert.Equal(t, 1, again.Imported, "name-only rows are always added")
}

func TestImporter_ReadAndImport(t *testing.T) {
	importer, testDB := setupImporter(t)

	var rows [][]interface{}
	rows = append(rows, header)
	for i := 1; i <= 3; i++ {
		rows = append(rows, []interface{}{"Mixer", "kitchen", "80", fmt.Sprintf("u%d@example.com", i), "", fmt.Sprint(i + 2), "", "Sturdy"})
	}

	parsed, skipped, err := ReadRows(workbook(t, rows...))
	require.NoError(t, err)
	assert.Empty(t, skipped)

	report, err := importer.Import(context.Background(), parsed)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Imported)

	var mixer model.Product
	require.NoError(t, testDB.Where("name = ?", "Mixer").First(&mixer).Error)
	assert.Equal(t, 4.0, mixer.AverageRating)
	assert.Equal(t, 80.0, mixer.Price)
}
