package prompt

import (
	"strings"
	"testing"
)

func TestBuild_EmbedsKnowledgeVerbatim(t *testing.T) {
	kb := "Q: 公司的營業時間是幾點？ A: 我們週一至週五早上9:00到下午6:00營業"
	got := Build(kb)

	if !strings.Contains(got, kb) {
		t.Fatalf("knowledge not embedded: %q", got)
	}
	if !strings.Contains(got, NoInfoReply) {
		t.Error("prompt should name the no-information reply")
	}
	if strings.Contains(got, "{no_info}") {
		t.Error("placeholder left in prompt")
	}
	if strings.Index(got, KnowledgeHeader) > strings.Index(got, kb) {
		t.Error("knowledge should follow the header")
	}
}

func TestKnowledge_RoundTrip(t *testing.T) {
	kb := "line one\nline two"
	if got := Knowledge(Build(kb)); got != kb {
		t.Errorf("expected %q, got %q", kb, got)
	}
}

func TestKnowledge_ForeignPrompt(t *testing.T) {
	if got := Knowledge("you are a helpful assistant"); got != "" {
		t.Errorf("expected empty, got %q", got)
	}
}
