package errors

import (
	"fmt"
	"strings"
	"testing"
)

func TestFastPathNoTelemetry(t *testing.T) {
	SetTelemetryReporter(nil)

	ee := New(fmt.Errorf("test error")).Build()

	if ee.Err.Error() != "test error" {
		t.Errorf("Expected error message 'test error', got '%s'", ee.Err.Error())
	}
	if ee.GetComponent() != ComponentUnknown {
		t.Errorf("Expected component 'unknown' in fast path, got '%s'", ee.GetComponent())
	}
	if ee.Category != CategoryGeneric {
		t.Errorf("Expected category 'generic' in fast path, got '%s'", ee.Category)
	}
}

type recordingReporter struct {
	reported []*EnhancedError
}

func (r *recordingReporter) ReportError(ee *EnhancedError) { r.reported = append(r.reported, ee) }
func (r *recordingReporter) IsEnabled() bool               { return true }

func TestBuildReportsWhenReporterActive(t *testing.T) {
	rep := &recordingReporter{}
	SetTelemetryReporter(rep)
	t.Cleanup(func() { SetTelemetryReporter(nil) })

	ee := Newf("annotation %d not found", 7).Build()

	if len(rep.reported) != 1 {
		t.Fatalf("Expected 1 reported error, got %d", len(rep.reported))
	}
	if ee.Category != CategoryNotFound {
		t.Errorf("Expected detected category 'not-found', got '%s'", ee.Category)
	}
}

func TestCategoryMatchingAndUnwrap(t *testing.T) {
	sentinel := NewStd("store rejected write")
	ee := New(fmt.Errorf("saving annotation 3: %w", sentinel)).
		Category(CategoryStoreWrite).
		AnnotationContext(3, 11).
		Build()

	if !Is(ee, sentinel) {
		t.Error("Expected wrapped sentinel to match through EnhancedError")
	}
	if !IsCategory(ee, CategoryStoreWrite) {
		t.Error("Expected IsCategory to match store-write")
	}
	if IsNotFound(ee) {
		t.Error("store-write error must not be reported as not-found")
	}

	ctx := ee.GetContext()
	if ctx["annotation_id"] != uint(3) || ctx["activity_id"] != uint(11) {
		t.Errorf("Unexpected context: %v", ctx)
	}
	ctx["annotation_id"] = uint(99)
	if ee.GetContext()["annotation_id"] != uint(3) {
		t.Error("GetContext must return a copy")
	}
}

func TestPriorityFallsBackToMedium(t *testing.T) {
	ee := New(NewStd("x")).Priority("urgent").Build()
	if ee.GetPriority() != PriorityMedium {
		t.Errorf("Expected medium priority fallback, got %q", ee.GetPriority())
	}
}

func TestBasicScrub(t *testing.T) {
	msg := "open failed for user:hunter2@tcp(db:3306)/postit and https://example.com/x?token=abc password=secret"
	scrubbed := basicScrub(msg)

	for _, leaked := range []string{"hunter2", "token=abc", "secret"} {
		if strings.Contains(scrubbed, leaked) {
			t.Errorf("Scrubbed message still contains %q: %s", leaked, scrubbed)
		}
	}
}

func TestGenerateErrorTitle(t *testing.T) {
	ee := New(NewStd("boom")).
		Component("lifecycle").
		Category(CategoryOrphanCleanup).
		Context("operation", "release_criterion").
		Build()

	got := generateErrorTitle(ee, ee.GetComponent())
	want := "Lifecycle Orphan Cleanup Failure Release Criterion"
	if got != want {
		t.Errorf("generateErrorTitle() = %q, want %q", got, want)
	}
}
