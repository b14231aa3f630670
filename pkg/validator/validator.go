package validator

import (
	stderrors "errors"
	"fmt"
	"net/url"
	"path"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

const maxTagLength = 50

var imageExtensions = map[string]bool{
	".jpeg": true,
	".jpg":  true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// Register installs the custom rules on gin's validator engine. Call once at
// startup before any request is bound.
func Register() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return stderrors.New("gin validator engine is not go-playground/validator")
	}
	return RegisterOn(v)
}

func RegisterOn(v *validator.Validate) error {
	v.RegisterTagNameFunc(fieldName)
	if err := v.RegisterValidation("review_tag", validateReviewTag); err != nil {
		return fmt.Errorf("register review_tag: %w", err)
	}
	if err := v.RegisterValidation("image_url", validateImageURL); err != nil {
		return fmt.Errorf("register image_url: %w", err)
	}
	return nil
}

// review_tag: 공백 제거 후 1~50자
func validateReviewTag(fl validator.FieldLevel) bool {
	tag := strings.TrimSpace(fl.Field().String())
	n := utf8.RuneCountInString(tag)
	return n >= 1 && n <= maxTagLength
}

// image_url: 빈 값 허용. http(s) 절대 URL 또는 / 로 시작하는 경로이며 이미지 확장자
func validateImageURL(fl validator.FieldLevel) bool {
	raw := strings.TrimSpace(fl.Field().String())
	if raw == "" {
		return true
	}

	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	switch {
	case u.Scheme == "http" || u.Scheme == "https":
		if u.Host == "" {
			return false
		}
	case u.Scheme == "" && strings.HasPrefix(u.Path, "/"):
	default:
		return false
	}
	return imageExtensions[strings.ToLower(path.Ext(u.Path))]
}

// FieldErrors converts validator errors into a field → message map. It
// returns nil for errors that are not validation failures.
func FieldErrors(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return nil
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = messageFor(fe)
	}
	return fields
}

// fieldName reports fields by their json (or form) name.
func fieldName(fld reflect.StructField) string {
	for _, key := range []string{"json", "form"} {
		name := strings.SplitN(fld.Tag.Get(key), ",", 2)[0]
		if name != "" && name != "-" {
			return name
		}
	}
	return ""
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "필수 항목입니다"
	case "email":
		return "올바른 이메일 형식이 아닙니다"
	case "min":
		return fmt.Sprintf("최소 %s 이상이어야 합니다", fe.Param())
	case "max":
		return fmt.Sprintf("최대 %s 이하여야 합니다", fe.Param())
	case "gte":
		return fmt.Sprintf("%s 이상이어야 합니다", fe.Param())
	case "lte":
		return fmt.Sprintf("%s 이하여야 합니다", fe.Param())
	case "oneof":
		return fmt.Sprintf("다음 중 하나여야 합니다: %s", fe.Param())
	case "review_tag":
		return fmt.Sprintf("태그는 1~%d자여야 합니다", maxTagLength)
	case "image_url":
		return "이미지 URL 형식이 올바르지 않습니다"
	default:
		return fmt.Sprintf("'%s' 검증에 실패했습니다", fe.Tag())
	}
}
