package graph

import (
	"testing"

	"github.com/verityhq/verity/internal/models"
)

func TestCollectionFor(t *testing.T) {
	cases := map[models.KnowledgeType]string{
		models.KnowledgePattern:      "knowledge_patterns",
		models.KnowledgeStandard:     "coding_standards",
		models.KnowledgeRequirement:  "requirements",
		models.KnowledgeArchitecture: "architecture_patterns",
	}
	for kt, want := range cases {
		got, ok := CollectionFor(kt)
		if !ok || got != want {
			t.Errorf("CollectionFor(%s) = %q, %v; want %q", kt, got, ok, want)
		}
	}
	if _, ok := CollectionFor(models.KnowledgeType("bogus")); ok {
		t.Error("unknown type should not resolve")
	}
}
