package core_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mikey/teethanalyzer/internal/core"
	"github.com/mikey/teethanalyzer/internal/testutil"
	"go.uber.org/zap/zaptest"
)

type upperProcessor struct{}

func (upperProcessor) ProcessText(text string, maxSize int) string { return strings.ToUpper(text) }

func collect(relay *core.ChatRelay, ctx context.Context, turn *core.ChatTurn) []string {
	var out []string
	for fragment := range relay.Relay(ctx, turn) {
		out = append(out, fragment)
	}
	return out
}

func TestRelayForwardsFragmentsInOrder(t *testing.T) {
	client := &testutil.MockChatClient{Fragments: []string{"Brush ", "", "twice ", "daily."}}
	relay := core.NewChatRelay(client, upperProcessor{}, 100, zaptest.NewLogger(t))

	got := collect(relay, context.Background(), &core.ChatTurn{Prompt: "how often?"})
	if strings.Join(got, "") != "Brush twice daily." || len(got) != 3 {
		t.Fatalf("unexpected fragments %q", got)
	}
	if client.LastTurn.Prompt != "HOW OFTEN?" {
		t.Fatalf("prompt not processed: %q", client.LastTurn.Prompt)
	}
}

func TestRelayFoldsUpstreamErrorIntoFinalFragment(t *testing.T) {
	client := &testutil.MockChatClient{
		Fragments: []string{"partial"},
		Err:       &core.UpstreamChatError{Provider: "gemini", Err: errors.New("quota exceeded")},
	}
	relay := core.NewChatRelay(client, nil, 0, zaptest.NewLogger(t))

	got := collect(relay, context.Background(), &core.ChatTurn{Prompt: "hi"})
	if len(got) != 2 {
		t.Fatalf("expected partial text plus error marker, got %q", got)
	}
	last := got[len(got)-1]
	if !core.IsErrorFragment(last) || !strings.Contains(last, "quota exceeded") {
		t.Fatalf("last fragment %q is not an error marker", last)
	}
	if core.IsErrorFragment(got[0]) {
		t.Fatalf("content fragment flagged as error")
	}
}

func TestRelayStopsWhenConsumerStops(t *testing.T) {
	client := &testutil.MockChatClient{Fragments: []string{"a", "b", "c", "d"}}
	relay := core.NewChatRelay(client, nil, 0, zaptest.NewLogger(t))

	for fragment := range relay.Relay(context.Background(), &core.ChatTurn{Prompt: "x"}) {
		if fragment == "b" {
			break
		}
	}
	if client.Delivered != 2 {
		t.Fatalf("upstream delivered %d fragments after break, want 2", client.Delivered)
	}
}

func TestRelaySequenceIsNotRestartable(t *testing.T) {
	client := &testutil.MockChatClient{Fragments: []string{"once"}}
	relay := core.NewChatRelay(client, nil, 0, zaptest.NewLogger(t))

	seq := relay.Relay(context.Background(), &core.ChatTurn{Prompt: "x"})
	first := 0
	for range seq {
		first++
	}
	second := 0
	for range seq {
		second++
	}
	if first != 1 || second != 0 || client.Calls != 1 {
		t.Fatalf("first=%d second=%d calls=%d", first, second, client.Calls)
	}
}
