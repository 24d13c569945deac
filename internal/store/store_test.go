package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"llamadeskd/pkg/types"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", "sessions.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestChatCRUD(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	c, err := s.CreateChat(ctx, "tiny", "127.0.0.1", 9001)
	if err != nil {
		t.Fatalf("CreateChat: %v", err)
	}
	if c.ID == "" || c.ModelName != "tiny" || c.CreatedAt == 0 {
		t.Fatalf("chat: %+v", c)
	}

	got, err := s.GetChat(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetChat: %v", err)
	}
	if got != c {
		t.Fatalf("got %+v, want %+v", got, c)
	}

	chats, err := s.ListChats(ctx)
	if err != nil || len(chats) != 1 {
		t.Fatalf("ListChats: %v, %v", chats, err)
	}

	if err := s.DeleteChat(ctx, c.ID); err != nil {
		t.Fatalf("DeleteChat: %v", err)
	}
	if _, err := s.GetChat(ctx, c.ID); !IsChatNotFound(err) {
		t.Fatalf("expected not-found, got %v", err)
	}
	if err := s.DeleteChat(ctx, c.ID); !IsChatNotFound(err) {
		t.Fatalf("double delete: %v", err)
	}
}

func TestMessages(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	c, err := s.CreateChat(ctx, "tiny", "127.0.0.1", 9001)
	if err != nil {
		t.Fatalf("CreateChat: %v", err)
	}

	user := types.ChatMessage{Role: "user", Content: "hi", Timestamp: 1000}
	asst := types.ChatMessage{
		Role: "assistant", Content: "hello", Timestamp: 2000,
		GenerationStats: &types.GenerationStats{
			TokensPerSecond: 12.5, TotalTokens: 42,
			TimeToFirstTokenSeconds: 0.3, StopReason: "EOS Token Found",
		},
	}
	if err := s.AppendMessage(ctx, c.ID, user); err != nil {
		t.Fatalf("append user: %v", err)
	}
	if err := s.AppendMessage(ctx, c.ID, asst); err != nil {
		t.Fatalf("append assistant: %v", err)
	}

	msgs, err := s.Messages(ctx, c.ID)
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Role != "user" || msgs[1].Role != "assistant" {
		t.Fatalf("msgs: %+v", msgs)
	}
	if msgs[0].GenerationStats != nil {
		t.Fatalf("user message should carry no stats")
	}
	gs := msgs[1].GenerationStats
	if gs == nil || gs.TotalTokens != 42 || gs.StopReason != "EOS Token Found" {
		t.Fatalf("stats did not round trip: %+v", gs)
	}

	// Appending bumps the chat's updated_at, reordering the listing.
	if _, err := s.CreateChat(ctx, "other", "127.0.0.1", 9002); err != nil {
		t.Fatalf("CreateChat: %v", err)
	}
	time.Sleep(5 * time.Millisecond) // updated_at has millisecond resolution
	if err := s.AppendMessage(ctx, c.ID, types.ChatMessage{Role: "user", Content: "x", Timestamp: 3000}); err != nil {
		t.Fatalf("append: %v", err)
	}
	chats, err := s.ListChats(ctx)
	if err != nil || len(chats) != 2 {
		t.Fatalf("ListChats: %v, %v", chats, err)
	}
	if chats[0].ID != c.ID {
		t.Fatalf("most recently updated chat should list first")
	}
}

func TestAppendMessageUnknownChat(t *testing.T) {
	s := openStore(t)
	err := s.AppendMessage(context.Background(), "nope", types.ChatMessage{Role: "user", Content: "x", Timestamp: 1})
	if !IsChatNotFound(err) {
		t.Fatalf("expected chat not-found, got %v", err)
	}
}

func TestDeleteMessageAndClear(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	c, err := s.CreateChat(ctx, "tiny", "127.0.0.1", 9001)
	if err != nil {
		t.Fatalf("CreateChat: %v", err)
	}
	for ts := int64(1); ts <= 3; ts++ {
		if err := s.AppendMessage(ctx, c.ID, types.ChatMessage{Role: "user", Content: "m", Timestamp: ts}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	if err := s.DeleteMessage(ctx, c.ID, 2); err != nil {
		t.Fatalf("DeleteMessage: %v", err)
	}
	if err := s.DeleteMessage(ctx, c.ID, 2); !IsMessageNotFound(err) {
		t.Fatalf("double delete: %v", err)
	}
	msgs, _ := s.Messages(ctx, c.ID)
	if len(msgs) != 2 {
		t.Fatalf("msgs after delete: %+v", msgs)
	}

	if err := s.ClearChat(ctx, c.ID); err != nil {
		t.Fatalf("ClearChat: %v", err)
	}
	msgs, _ = s.Messages(ctx, c.ID)
	if len(msgs) != 0 {
		t.Fatalf("msgs after clear: %+v", msgs)
	}
	// Chat itself survives a clear.
	if _, err := s.GetChat(ctx, c.ID); err != nil {
		t.Fatalf("chat gone after clear: %v", err)
	}
}

func TestSessionState(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	got, err := s.SessionState(ctx, "desktop")
	if err != nil || got != nil {
		t.Fatalf("absent key: %v, %v", got, err)
	}

	blob := json.RawMessage(`{"windows":[{"x":10,"y":20}]}`)
	if err := s.SetSessionState(ctx, "desktop", blob); err != nil {
		t.Fatalf("SetSessionState: %v", err)
	}
	got, err = s.SessionState(ctx, "desktop")
	if err != nil || string(got) != string(blob) {
		t.Fatalf("round trip: %s, %v", got, err)
	}

	// Upsert replaces.
	if err := s.SetSessionState(ctx, "desktop", json.RawMessage(`{}`)); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, _ = s.SessionState(ctx, "desktop")
	if string(got) != "{}" {
		t.Fatalf("upsert result: %s", got)
	}
}

func TestReopenPersists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sessions.db")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	c, err := s.CreateChat(ctx, "tiny", "127.0.0.1", 9001)
	if err != nil {
		t.Fatalf("CreateChat: %v", err)
	}
	s.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	if _, err := s2.GetChat(ctx, c.ID); err != nil {
		t.Fatalf("chat lost across reopen: %v", err)
	}
}
