package secrets

import (
	"context"
	"testing"

	"github.com/1Password/connect-sdk-go/onepassword"
)

func TestParseRef_ItemAndFieldSplitsOnSlash(t *testing.T) {
	item, field := parseRef("op://gov-feeds/nws-api/credential")
	if item != "gov-feeds" {
		t.Errorf("expected item %q, got %q", "gov-feeds", item)
	}
	if field != "nws-api/credential" {
		t.Errorf("expected field %q, got %q", "nws-api/credential", field)
	}
}

func TestParseRef_ItemOnlyDefaultsField(t *testing.T) {
	item, field := parseRef("nws-api")
	if item != "nws-api" {
		t.Errorf("expected item %q, got %q", "nws-api", item)
	}
	if field != defaultField {
		t.Errorf("expected default field %q, got %q", defaultField, field)
	}
}

func TestParseRef_SingleSegmentAfterPrefixDefaultsField(t *testing.T) {
	item, field := parseRef("op://nws-api")
	if item != "nws-api" || field != defaultField {
		t.Errorf("expected (nws-api, %q), got (%q, %q)", defaultField, item, field)
	}
}

func TestFieldValue_MatchesByLabelOrID(t *testing.T) {
	item := &onepassword.Item{
		Title: "nws-api",
		Fields: []*onepassword.ItemField{
			{ID: "credential", Label: "credential", Value: "secret-123"},
		},
	}
	v, err := fieldValue(item, "credential")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "secret-123" {
		t.Errorf("expected secret-123, got %q", v)
	}
}

func TestFieldValue_MissingFieldReturnsError(t *testing.T) {
	item := &onepassword.Item{Title: "nws-api", Fields: nil}
	if _, err := fieldValue(item, "credential"); err == nil {
		t.Fatal("expected error for missing field")
	}
}

func TestUnconfigured_RejectsAnyNonEmptyRef(t *testing.T) {
	_, err := Unconfigured{}.Resolve(context.Background(), "op://gov-feeds/nws-api")
	if err == nil {
		t.Fatal("expected Unconfigured resolver to reject any ref")
	}
}
