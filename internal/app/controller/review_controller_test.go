package controller

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"testing"

	"github.com/ikkim/productreview-backend/internal/app/model"
	apperrors "github.com/ikkim/productreview-backend/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type formPhoto struct {
	filename    string
	contentType string
	content     []byte
}

func multipartReview(t *testing.T, fields map[string][]string, photos []formPhoto) (*bytes.Buffer, string) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	for key, values := range fields {
		for _, v := range values {
			require.NoError(t, writer.WriteField(key, v))
		}
	}
	for _, p := range photos {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="photos"; filename="%s"`, p.filename))
		header.Set("Content-Type", p.contentType)
		part, err := writer.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write(p.content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestReviewController_CreateJSON(t *testing.T) {
	env := setupControllerTest(t)
	product := env.createProduct(t, "Kettle")
	_, token := env.createUser(t, "writer@example.com", model.RoleUser)
	path := fmt.Sprintf("/products/%d/reviews", product.ID)

	w := env.requestJSON(t, http.MethodPost, path, map[string]interface{}{"rating": 5}, "")
	assertErrorCode(t, w, http.StatusUnauthorized, apperrors.AuthUnauthorized)

	w = env.requestJSON(t, http.MethodPost, path, map[string]interface{}{"comment": "  "}, token)
	assertErrorCode(t, w, http.StatusBadRequest, apperrors.ReviewEmpty)

	w = env.requestJSON(t, http.MethodPost, path, map[string]interface{}{"rating": 9}, token)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = env.requestJSON(t, http.MethodPost, path, map[string]interface{}{
		"rating": 4,
		"tags":   []string{"Fast", "fast ", "FAST"},
	}, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	review := decodeBody(t, w)["review"].(map[string]interface{})
	assert.Equal(t, 4.0, review["rating"])

	w = env.requestJSON(t, http.MethodPost, path, map[string]interface{}{"rating": 1}, token)
	assertErrorCode(t, w, http.StatusConflict, apperrors.ReviewAlreadyExists)

	w = env.request(http.MethodGet, fmt.Sprintf("/products/%d/tags", product.ID), nil, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	tags := decodeBody(t, w)["tags"].([]interface{})
	require.Len(t, tags, 1)
	assert.Equal(t, map[string]interface{}{"tagName": "fast", "count": 3.0}, tags[0])

	w = env.requestJSON(t, http.MethodPost, "/products/9999/reviews", map[string]interface{}{"rating": 3}, token)
	assertErrorCode(t, w, http.StatusNotFound, apperrors.ProductNotFound)
}

func TestReviewController_CreateMultipart(t *testing.T) {
	env := setupControllerTest(t)
	product := env.createProduct(t, "Camera")
	_, token := env.createUser(t, "photographer@example.com", model.RoleUser)
	path := fmt.Sprintf("/products/%d/reviews", product.ID)

	body, contentType := multipartReview(t,
		map[string][]string{
			"rating":  {"5"},
			"comment": {"Sharp pictures"},
			"tags":    {`["Sharp","light"]`},
		},
		[]formPhoto{{filename: "shot.png", contentType: "image/png", content: []byte("png-bytes")}},
	)
	w := env.request(http.MethodPost, path, body, contentType, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	review := decodeBody(t, w)["review"].(map[string]interface{})
	assert.Equal(t, []interface{}{"sharp", "light"}, review["tags"])
	photos := review["photos"].([]interface{})
	require.Len(t, photos, 1)
	filename := photos[0].(map[string]interface{})["filename"].(string)
	_, err := os.Stat(filepath.Join(env.photoDir, filename))
	assert.NoError(t, err)
}

func TestReviewController_CreateMultipart_Rejections(t *testing.T) {
	env := setupControllerTest(t)
	product := env.createProduct(t, "Printer")
	_, token := env.createUser(t, "rejected@example.com", model.RoleUser)
	path := fmt.Sprintf("/products/%d/reviews", product.ID)

	tooMany := make([]formPhoto, 6)
	for i := range tooMany {
		tooMany[i] = formPhoto{filename: fmt.Sprintf("p%d.jpg", i), contentType: "image/jpeg", content: []byte("x")}
	}

	tests := []struct {
		name     string
		fields   map[string][]string
		photos   []formPhoto
		wantCode string
	}{
		{
			name:     "Text file",
			fields:   map[string][]string{"rating": {"3"}},
			photos:   []formPhoto{{filename: "notes.txt", contentType: "text/plain", content: []byte("hi")}},
			wantCode: apperrors.UploadInvalidFileType,
		},
		{
			name:     "Too many photos",
			fields:   map[string][]string{"rating": {"3"}},
			photos:   tooMany,
			wantCode: apperrors.UploadTooManyFiles,
		},
		{
			name:     "Malformed tags",
			fields:   map[string][]string{"rating": {"3"}, "tags": {`["unterminated`}},
			wantCode: apperrors.ValidationInvalidFormat,
		},
		{
			name:     "Eleven tags",
			fields:   map[string][]string{"rating": {"3"}, "tags": {"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k"}},
			wantCode: apperrors.ValidationInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, contentType := multipartReview(t, tt.fields, tt.photos)
			w := env.request(http.MethodPost, path, body, contentType, token)
			assertErrorCode(t, w, http.StatusBadRequest, tt.wantCode)
		})
	}

	entries, err := os.ReadDir(env.photoDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestReviewController_ListAndAverage(t *testing.T) {
	env := setupControllerTest(t)
	product := env.createProduct(t, "Blender")

	for i, r := range []interface{}{5, 5, 4, nil} {
		_, token := env.createUser(t, fmt.Sprintf("r%d@example.com", i), model.RoleUser)
		payload := map[string]interface{}{"comment": "review text"}
		if r != nil {
			payload["rating"] = r
		}
		w := env.requestJSON(t, http.MethodPost, fmt.Sprintf("/products/%d/reviews", product.ID), payload, token)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w := env.request(http.MethodGet, fmt.Sprintf("/products/%d/reviews/average", product.ID), nil, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]interface{}{"averageRating": 4.7, "totalReviews": 3.0}, decodeBody(t, w))

	w = env.request(http.MethodGet, fmt.Sprintf("/products/%d/reviews?rating=5&sort=most_helpful", product.ID), nil, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody(t, w)["reviews"], 2)

	w = env.request(http.MethodGet, fmt.Sprintf("/products/%d/reviews?rating=five", product.ID), nil, "", "")
	assertErrorCode(t, w, http.StatusBadRequest, apperrors.ValidationInvalidFormat)

	w = env.request(http.MethodGet, fmt.Sprintf("/products/%d/reviews?limit=51", product.ID), nil, "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.request(http.MethodGet, fmt.Sprintf("/products/%d/stats", product.ID), nil, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	overall := decodeBody(t, w)["overall_stats"].(map[string]interface{})
	assert.Equal(t, 4.0, overall["total_reviews"])
	assert.Equal(t, 3.0, overall["total_ratings"])
	assert.Equal(t, 4.7, overall["average_rating"])
}

func TestReviewController_UpdateDeleteHelpful(t *testing.T) {
	env := setupControllerTest(t)
	product := env.createProduct(t, "Toaster")
	_, ownerToken := env.createUser(t, "owner@example.com", model.RoleUser)
	_, otherToken := env.createUser(t, "other@example.com", model.RoleUser)

	w := env.requestJSON(t, http.MethodPost, fmt.Sprintf("/products/%d/reviews", product.ID),
		map[string]interface{}{"rating": 2, "tags": []string{"burnt"}}, ownerToken)
	require.Equal(t, http.StatusCreated, w.Code)
	reviewID := uint(decodeBody(t, w)["review"].(map[string]interface{})["id"].(float64))
	reviewPath := fmt.Sprintf("/reviews/%d", reviewID)

	w = env.requestJSON(t, http.MethodPut, reviewPath, map[string]interface{}{"rating": 3}, otherToken)
	assertErrorCode(t, w, http.StatusForbidden, apperrors.AuthzOwnerOnly)

	w = env.requestJSON(t, http.MethodPut, reviewPath, map[string]interface{}{"tags": []string{"  "}}, ownerToken)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = env.requestJSON(t, http.MethodPut, reviewPath, map[string]interface{}{"rating": 4, "tags": []string{"crispy"}}, ownerToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 4.0, decodeBody(t, w)["review"].(map[string]interface{})["rating"])

	w = env.request(http.MethodPost, reviewPath+"/helpful", nil, "", otherToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]interface{}{"voted": true, "helpful_count": 1.0}, decodeBody(t, w))

	w = env.request(http.MethodGet, "/users/me/reviews", nil, "", ownerToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1.0, decodeBody(t, w)["count"])

	w = env.request(http.MethodDelete, reviewPath, nil, "", otherToken)
	assertErrorCode(t, w, http.StatusForbidden, apperrors.AuthzOwnerOnly)

	w = env.request(http.MethodDelete, reviewPath, nil, "", ownerToken)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.request(http.MethodGet, reviewPath, nil, "", "")
	assertErrorCode(t, w, http.StatusNotFound, apperrors.ReviewNotFound)

	var stored model.Product
	require.NoError(t, env.db.First(&stored, product.ID).Error)
	assert.Equal(t, 0.0, stored.AverageRating)
	assert.Equal(t, 0, stored.TotalReviews)
}
