package mail

import (
	"strings"
	"testing"
)

func TestRenderTermsLink(t *testing.T) {
	r, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}

	html, err := r.Render("terms_link", map[string]any{
		"FullName":     "Ada Lovelace",
		"TermsURL":     "https://partners.example.com/partner-terms?token=partner_1_a_b",
		"ValidityDays": 30,
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	for _, want := range []string{
		"Ada Lovelace",
		"https://partners.example.com/partner-terms?token=partner_1_a_b",
		"30 days",
	} {
		if !strings.Contains(html, want) {
			t.Fatalf("rendered email missing %q", want)
		}
	}
}

func TestRenderAllTemplates(t *testing.T) {
	r, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}

	data := map[string]any{
		"FullName":     "Ada Lovelace",
		"TermsURL":     "https://example.com",
		"ValidityDays": 7,
	}
	for _, name := range []string{"application_received", "terms_link", "terms_accepted"} {
		if _, err := r.Render(name, data); err != nil {
			t.Fatalf("Render(%s): %v", name, err)
		}
	}
}

func TestRenderUnknownTemplate(t *testing.T) {
	r, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	if _, err := r.Render("nope", nil); err == nil {
		t.Fatalf("expected error for unknown template")
	}
}
