package refine

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

// fakeBackend maps exact paragraph inputs to canned corrections and
// records how many calls it received.
type fakeBackend struct {
	corrections map[string]string
	err         error
	calls       int
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Correct(_ context.Context, paragraph string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	if out, ok := f.corrections[paragraph]; ok {
		return out, nil
	}
	return paragraph, nil
}

const clauseA = "Le locataire s'engage a payer le loyer mensuel au plus tard le cinquieme jour de chaque mois."
const clauseACorrected = "Le locataire s'engage à payer le loyer mensuel au plus tard le cinquième jour de chaque mois."

func TestValidateCorrection(t *testing.T) {
	t.Run("identical text accepted", func(t *testing.T) {
		got := validateCorrection(clauseA, clauseA)
		if !got.OK {
			t.Fatalf("identical correction rejected: %s", got.Reason)
		}
	})

	t.Run("accent fixes accepted", func(t *testing.T) {
		got := validateCorrection(clauseA, clauseACorrected)
		if !got.OK {
			t.Fatalf("accent-only correction rejected: %s", got.Reason)
		}
	})

	t.Run("dropped negation rejected", func(t *testing.T) {
		orig := "Le locataire ne doit pas payer de pénalité."
		corr := "Le locataire ne doit payer de pénalité."
		got := validateCorrection(orig, corr)
		if got.OK {
			t.Fatal("correction dropping 'pas' was accepted")
		}
	})

	t.Run("truncated paragraph rejected", func(t *testing.T) {
		got := validateCorrection(clauseA, clauseA[:len(clauseA)/2])
		if got.OK {
			t.Fatal("half-length correction was accepted")
		}
		if !strings.Contains(got.Reason, "length ratio") {
			t.Errorf("reason = %q, want length ratio breach", got.Reason)
		}
	})

	t.Run("changed modal count rejected", func(t *testing.T) {
		orig := "Le bailleur doit notifier le locataire avant toute visite des lieux loués."
		corr := "Le bailleur peut notifier le locataire avant toute visite des lieux loués."
		got := validateCorrection(orig, corr)
		if got.OK {
			t.Fatal("doit -> peut substitution was accepted")
		}
	})

	t.Run("term matching is case insensitive", func(t *testing.T) {
		orig := "SAUF disposition contraire, le contrat est reconduit pour une durée identique."
		corr := "Sauf disposition contraire, le contrat est reconduit pour une durée identique."
		got := validateCorrection(orig, corr)
		if !got.OK {
			t.Fatalf("case-only change rejected: %s", got.Reason)
		}
	})
}

func TestConfidenceBands(t *testing.T) {
	cases := []struct {
		diff float64
		want float64
	}{
		{0, 1.0},
		{0.01, 0.8},
		{0.03, 0.7},
		{0.07, 0.6},
		{0.20, 0.5},
	}
	for _, tc := range cases {
		if got := confidenceFor(tc.diff); got != tc.want {
			t.Errorf("confidenceFor(%v) = %v, want %v", tc.diff, got, tc.want)
		}
	}
}

func TestSeverityBands(t *testing.T) {
	if got := severityFor(0.03); got != SeverityLow {
		t.Errorf("severityFor(0.03) = %s, want low", got)
	}
	if got := severityFor(0.07); got != SeverityMedium {
		t.Errorf("severityFor(0.07) = %s, want medium", got)
	}
	if got := severityFor(0.15); got != SeverityHigh {
		t.Errorf("severityFor(0.15) = %s, want high", got)
	}
}

func TestRefineAppliesSafeCorrection(t *testing.T) {
	backend := &fakeBackend{corrections: map[string]string{clauseA: clauseACorrected}}
	r := New(backend)

	res := r.Refine(context.Background(), clauseA)

	if res.Refined != clauseACorrected {
		t.Errorf("Refined = %q, want corrected clause", res.Refined)
	}
	if !res.UsedAI {
		t.Error("UsedAI = false after a successful backend call")
	}
	if len(res.Changes) != 1 {
		t.Fatalf("got %d changes, want 1", len(res.Changes))
	}
	if !res.Changes[0].Applied {
		t.Error("change not marked applied")
	}
	if res.Confidence >= 1.0 || res.Confidence < 0.5 {
		t.Errorf("Confidence = %v, want a sub-1.0 band", res.Confidence)
	}
}

func TestRefineRejectsUnsafeCorrection(t *testing.T) {
	orig := "Le locataire ne doit pas sous-louer le logement sans accord écrit du bailleur."
	unsafe := "Le locataire doit sous-louer le logement sans accord écrit du bailleur."
	backend := &fakeBackend{corrections: map[string]string{orig: unsafe}}
	r := New(backend)

	res := r.Refine(context.Background(), orig)

	if res.Refined != orig {
		t.Errorf("Refined = %q, want original preserved", res.Refined)
	}
	if len(res.Changes) != 1 {
		t.Fatalf("got %d changes, want 1 rejection record", len(res.Changes))
	}
	if res.Changes[0].Applied {
		t.Error("rejected change marked applied")
	}
	reason := res.Changes[0].RejectionReason
	if !strings.HasPrefix(reason, RejectionUnsafeDivergence+":") {
		t.Errorf("RejectionReason = %q, want the %s tag", reason, RejectionUnsafeDivergence)
	}
	if strings.TrimSpace(strings.TrimPrefix(reason, RejectionUnsafeDivergence+":")) == "" {
		t.Errorf("RejectionReason = %q carries no detail", reason)
	}
	if res.Confidence != rejectedConfidence {
		t.Errorf("Confidence = %v, want %v", res.Confidence, rejectedConfidence)
	}
}

func TestRefineBackendFailureDegrades(t *testing.T) {
	backend := &fakeBackend{err: fmt.Errorf("connection refused")}
	r := New(backend)

	res := r.Refine(context.Background(), clauseA)

	if res.Refined != clauseA {
		t.Errorf("Refined = %q, want original on backend failure", res.Refined)
	}
	if res.UsedAI {
		t.Error("UsedAI = true although every call failed")
	}
	if len(res.Changes) != 0 {
		t.Errorf("got %d changes, want none", len(res.Changes))
	}
	if res.Confidence != 1.0 {
		t.Errorf("Confidence = %v, want 1.0 for untouched text", res.Confidence)
	}
}

func TestRefineRespectsBudget(t *testing.T) {
	var paras []string
	for i := 0; i < 8; i++ {
		paras = append(paras, fmt.Sprintf(
			"Article %d. Les parties conviennent que la présente clause s'applique sans réserve.", i+1))
	}
	text := strings.Join(paras, "\n\n")
	backend := &fakeBackend{}
	r := New(backend, WithBudget(3))

	r.Refine(context.Background(), text)

	if backend.calls != 3 {
		t.Errorf("backend received %d calls, want 3", backend.calls)
	}
}

func TestRefineSkipsPageMarkersAndFragments(t *testing.T) {
	text := "--- Page 1 ---\n\nArt. 3\n\n" + clauseA
	backend := &fakeBackend{}
	r := New(backend)

	res := r.Refine(context.Background(), text)

	if backend.calls != 1 {
		t.Errorf("backend received %d calls, want 1 (markers and fragments skipped)", backend.calls)
	}
	if !strings.HasPrefix(res.Refined, "--- Page 1 ---") {
		t.Errorf("page marker lost: %q", res.Refined)
	}
}

func TestRefineNilBackendPassthrough(t *testing.T) {
	r := New(nil)
	res := r.Refine(context.Background(), clauseA)
	if res.Refined != clauseA || res.UsedAI || res.Confidence != 1.0 {
		t.Errorf("nil backend result = %+v, want untouched passthrough", res)
	}
}
