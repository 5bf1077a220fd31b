package classifier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/citifix/backend/internal/models"
)

func TestCatalogHasUniqueValues(t *testing.T) {
	if err := ValidateCatalog(Catalog()); err != nil {
		t.Fatalf("catalog invalid: %v", err)
	}
	if len(Catalog()) != len(models.Categories) {
		t.Fatalf("expected one option per category, got %d", len(Catalog()))
	}
}

func TestValidateCatalogRejectsDuplicates(t *testing.T) {
	opts := Catalog()
	opts = append(opts, opts[0])
	if err := ValidateCatalog(opts); err == nil {
		t.Fatalf("expected duplicate value error")
	}
}

func TestSelectEveryOption(t *testing.T) {
	m := NewManual(0)
	for _, opt := range Catalog() {
		res, err := m.Select(string(opt.Value))
		if err != nil {
			t.Fatalf("select %s: %v", opt.Value, err)
		}
		if res.HumanReviewRequired || res.NeedsReview {
			t.Fatalf("%s: expected no review flags, got %+v", opt.Value, res)
		}
		if !res.IsManuallySelected {
			t.Fatalf("%s: expected manual selection flag", opt.Value)
		}
		if res.Confidence != opt.Confidence || res.OriginalConfidence != opt.Confidence {
			t.Fatalf("%s: expected confidence %.2f, got %.2f", opt.Value, opt.Confidence, res.Confidence)
		}
		if res.Severity != string(opt.Severity) {
			t.Fatalf("%s: expected severity %s, got %s", opt.Value, opt.Severity, res.Severity)
		}
	}
}

func TestSelectUnknown(t *testing.T) {
	_, err := NewManual(0).Select("Graffiti")
	if !errors.Is(err, ErrUnknownCategory) {
		t.Fatalf("expected ErrUnknownCategory, got %v", err)
	}
}

func TestAnalyzeReturnsPendingResult(t *testing.T) {
	res, err := NewManual(0).Analyze(context.Background())
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if !res.HumanReviewRequired || res.IsManuallySelected || res.Confidence != 0 {
		t.Fatalf("unexpected pending result: %+v", res)
	}
}

func TestAnalyzeHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewManual(time.Hour).Analyze(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
