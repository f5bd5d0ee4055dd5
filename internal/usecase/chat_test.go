package usecase

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"docrag/internal/adapter/embedding"
	"docrag/internal/adapter/index"
	"docrag/internal/domain"
)

type fakeLLM struct {
	calls      int
	lastSystem string
	lastUser   string
	reply      string
	err        error
}

func (f *fakeLLM) GenerateWithSystem(_ context.Context, system, user string) (string, error) {
	f.calls++
	f.lastSystem = system
	f.lastUser = user
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeLLM) ModelName() string { return "fake" }

func newChatFixture(t *testing.T, texts map[string]string) (*Chat, *fakeLLM) {
	t.Helper()

	idx, err := index.Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { idx.Close() })

	emb := embedding.NewMockEmbedder(16)
	if len(texts) > 0 {
		var entries []domain.Entry
		var docs []domain.Document
		seq := 0
		for path, text := range texts {
			vecs, err := emb.Embed(context.Background(), []string{text})
			if err != nil {
				t.Fatal(err)
			}
			entries = append(entries, domain.Entry{
				Chunk:  domain.Chunk{DocPath: path, Seq: seq, End: len(text), Text: text},
				Vector: vecs[0],
			})
			docs = append(docs, domain.Document{Path: path, Hash: path, Chunks: 1})
			seq++
		}
		if err := idx.Build(emb.ModelName(), emb.Dimension(), entries, docs); err != nil {
			t.Fatal(err)
		}
	}

	llm := &fakeLLM{reply: "a grounded answer"}
	retriever := NewRetriever(emb, idx, 0)
	return NewChat(retriever, llm, 3), llm
}

func TestRetrieveRejectsBadInput(t *testing.T) {
	chatless, _ := newChatFixture(t, nil)
	r := chatless.retriever

	var qerr *domain.QueryError
	if _, err := r.Retrieve(context.Background(), "hello", 0); !errors.As(err, &qerr) {
		t.Errorf("k=0: expected QueryError, got %v", err)
	}
	if _, err := r.Retrieve(context.Background(), "   ", 3); !errors.As(err, &qerr) {
		t.Errorf("blank query: expected QueryError, got %v", err)
	}
}

func TestRetrieveEmptyIndex(t *testing.T) {
	chat, _ := newChatFixture(t, nil)

	matches, err := chat.retriever.Retrieve(context.Background(), "anything", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 0 {
		t.Errorf("expected no matches from an empty index, got %d", len(matches))
	}
}

func TestRetrieveOrdersByDistance(t *testing.T) {
	chat, _ := newChatFixture(t, map[string]string{
		"a.txt": "alpha alpha alpha",
		"b.txt": "utterly different words",
	})

	matches, err := chat.retriever.Retrieve(context.Background(), "alpha alpha alpha", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].Chunk.DocPath != "a.txt" {
		t.Errorf("expected the identical text first, got %s", matches[0].Chunk.DocPath)
	}
	if matches[0].Distance > matches[1].Distance {
		t.Error("matches not ascending by distance")
	}
}

func TestRetrieveDistanceThreshold(t *testing.T) {
	idx, err := index.Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()

	emb := embedding.NewMockEmbedder(16)
	vecs, _ := emb.Embed(context.Background(), []string{"alpha alpha", "zzzz qqqq xxxx"})
	entries := []domain.Entry{
		{Chunk: domain.Chunk{DocPath: "near.txt", Text: "alpha alpha"}, Vector: vecs[0]},
		{Chunk: domain.Chunk{DocPath: "far.txt", Seq: 1, Text: "zzzz qqqq xxxx"}, Vector: vecs[1]},
	}
	docs := []domain.Document{
		{Path: "near.txt", Hash: "n", Chunks: 1},
		{Path: "far.txt", Hash: "f", Chunks: 1},
	}
	if err := idx.Build(emb.ModelName(), emb.Dimension(), entries, docs); err != nil {
		t.Fatal(err)
	}

	loose := NewRetriever(emb, idx, 0)
	all, err := loose.Retrieve(context.Background(), "alpha alpha", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("without a threshold expected both matches, got %d", len(all))
	}

	// Cut between the exact match and the unrelated one.
	cutoff := (all[0].Distance + all[1].Distance) / 2
	tight := NewRetriever(emb, idx, cutoff)
	kept, err := tight.Retrieve(context.Background(), "alpha alpha", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(kept) != 1 || kept[0].Chunk.DocPath != "near.txt" {
		t.Errorf("threshold %f should keep only the near match, got %v", cutoff, kept)
	}
}

func TestAskGroundsAnswerInRetrievedContext(t *testing.T) {
	chat, llm := newChatFixture(t, map[string]string{
		"notes.md": "the deploy runs every tuesday",
	})

	answer, err := chat.Ask(context.Background(), "the deploy runs every tuesday")
	if err != nil {
		t.Fatal(err)
	}
	if llm.calls != 1 {
		t.Fatalf("expected exactly one generation call, got %d", llm.calls)
	}
	if answer.Text != "a grounded answer" {
		t.Errorf("unexpected answer text %q", answer.Text)
	}
	if !strings.Contains(llm.lastUser, "the deploy runs every tuesday") {
		t.Error("prompt does not contain the retrieved chunk")
	}
	if !strings.Contains(llm.lastUser, "Source: notes.md") {
		t.Error("prompt does not attribute the chunk to its source")
	}
	if !strings.Contains(llm.lastSystem, "I don't know") {
		t.Error("system prompt does not instruct refusal on missing context")
	}
	if len(answer.Sources) != 1 || answer.Sources[0] != "notes.md" {
		t.Errorf("unexpected sources %v", answer.Sources)
	}
}

func TestAskEmptyRetrievalSkipsModel(t *testing.T) {
	chat, llm := newChatFixture(t, nil)

	answer, err := chat.Ask(context.Background(), "anything at all")
	if err != nil {
		t.Fatal(err)
	}
	if llm.calls != 0 {
		t.Errorf("model must not be called with no retrieved context, got %d calls", llm.calls)
	}
	if answer.Text != NoAnswerReply {
		t.Errorf("expected the fixed no-answer reply, got %q", answer.Text)
	}
	if len(answer.Sources) != 0 {
		t.Errorf("no-answer reply must not carry sources, got %v", answer.Sources)
	}
}

func TestAskPropagatesGenerationError(t *testing.T) {
	chat, llm := newChatFixture(t, map[string]string{"a.txt": "some content"})
	llm.err = errors.New("model unavailable")

	if _, err := chat.Ask(context.Background(), "some content"); err == nil {
		t.Fatal("expected the generation error to propagate")
	}
}

func TestUniqueSources(t *testing.T) {
	matches := []domain.Match{
		{Chunk: domain.Chunk{DocPath: "/kb/a.txt"}},
		{Chunk: domain.Chunk{DocPath: "/kb/b.txt"}},
		{Chunk: domain.Chunk{DocPath: "/kb/a.txt"}},
	}
	got := uniqueSources(matches)
	if len(got) != 2 || got[0] != "a.txt" || got[1] != "b.txt" {
		t.Errorf("unexpected sources %v", got)
	}
}
