package store

import (
	"fmt"
	"testing"
	"time"

	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/chaterr"
	"github.com/matheus3301/chatsync/internal/model"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func msg(id, from, to string, sec int) model.Message {
	return model.Message{
		ID: id, SenderID: from, ReceiverID: to,
		Content: "content " + id, Timestamp: t0.Add(time.Duration(sec) * time.Second),
	}
}

func ids(msgs []model.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func TestAppendMessageDedupesByID(t *testing.T) {
	s := New(nil)
	s.OpenConversation("u1")

	deliveries := []model.Message{
		msg("m1", "u1", "me", 1),
		msg("m2", "me", "u1", 2),
		msg("m1", "u1", "me", 1),
		msg("m3", "u1", "me", 3),
		msg("m2", "me", "u1", 2),
		msg("m3", "u1", "me", 3),
	}
	appended := 0
	for _, m := range deliveries {
		if s.AppendMessage(m) {
			appended++
		}
	}
	if appended != 3 {
		t.Errorf("appended %d, want 3", appended)
	}
	got := fmt.Sprint(ids(s.Messages()))
	if got != "[m1 m2 m3]" {
		t.Errorf("messages = %s, want [m1 m2 m3]", got)
	}
}

func TestAppendMessageIgnoresOtherPeers(t *testing.T) {
	s := New(nil)
	if s.AppendMessage(msg("m1", "u1", "me", 1)) {
		t.Error("appended with no open conversation")
	}

	s.OpenConversation("u1")
	if s.AppendMessage(msg("m2", "u2", "me", 2)) {
		t.Error("appended a message from u2 into u1's conversation")
	}
	if !s.AppendMessage(msg("m3", "me", "u1", 3)) {
		t.Error("outgoing message to the open peer was not appended")
	}
	if n := len(s.Messages()); n != 1 {
		t.Errorf("got %d messages, want 1", n)
	}
}

func TestAppendDuplicateUpgradesRead(t *testing.T) {
	s := New(nil)
	s.OpenConversation("u1")
	s.AppendMessage(msg("m1", "u1", "me", 1))

	dup := msg("m1", "u1", "me", 1)
	dup.Read = true
	if s.AppendMessage(dup) {
		t.Error("duplicate was appended")
	}
	m, _ := s.Message("m1")
	if !m.Read {
		t.Error("read flag not upgraded by duplicate delivery")
	}
}

func TestMergeMessagesKeepsPushDeliveredDuringFetch(t *testing.T) {
	s := New(nil)
	s.OpenConversation("u1")

	// Arrives between the request and its response.
	s.AppendMessage(msg("m4", "u1", "me", 40))

	snapshot := []model.Message{
		msg("m1", "u1", "me", 10),
		msg("m2", "me", "u1", 20),
		msg("m3", "u1", "me", 30),
	}
	merged, ok := s.MergeMessages("u1", snapshot)
	if !ok {
		t.Fatal("MergeMessages not applied for the open peer")
	}
	if got := fmt.Sprint(ids(merged)); got != "[m1 m2 m3 m4]" {
		t.Errorf("merged = %s, want [m1 m2 m3 m4]", got)
	}
}

func TestMergeMessagesDoesNotDuplicate(t *testing.T) {
	s := New(nil)
	s.OpenConversation("u1")
	s.AppendMessage(msg("m2", "me", "u1", 20))

	merged, _ := s.MergeMessages("u1", []model.Message{
		msg("m1", "u1", "me", 10),
		msg("m2", "me", "u1", 20),
	})
	if got := fmt.Sprint(ids(merged)); got != "[m1 m2]" {
		t.Errorf("merged = %s, want [m1 m2]", got)
	}
}

func TestMergeMessagesStaleSnapshotIsDropped(t *testing.T) {
	s := New(nil)
	s.OpenConversation("a")
	s.OpenConversation("b")
	s.MergeMessages("b", []model.Message{msg("b1", "b", "me", 1)})

	if _, ok := s.MergeMessages("a", []model.Message{msg("a1", "a", "me", 1)}); ok {
		t.Fatal("stale snapshot for a was applied while b is open")
	}
	if got := fmt.Sprint(ids(s.Messages())); got != "[b1]" {
		t.Errorf("messages = %s, want [b1]", got)
	}
	if s.CurrentConversation() != "b" {
		t.Errorf("current = %q, want b", s.CurrentConversation())
	}
}

func TestReconcile(t *testing.T) {
	read := msg("m2", "u1", "me", 20)
	read.Read = true

	got := Reconcile(
		[]model.Message{msg("m3", "u1", "me", 30), msg("m1", "u1", "me", 10), msg("m2", "u1", "me", 20)},
		[]model.Message{read, msg("m4", "u1", "me", 5)},
	)
	if s := fmt.Sprint(ids(got)); s != "[m4 m1 m2 m3]" {
		t.Errorf("order = %s, want [m4 m1 m2 m3]", s)
	}
	for _, m := range got {
		if m.ID == "m2" && !m.Read {
			t.Error("read flag from local copy was lost")
		}
	}
}

func TestMarkMessageRead(t *testing.T) {
	s := New(nil)
	s.OpenConversation("u1")
	s.AppendMessage(msg("m1", "u1", "me", 1))

	if !s.MarkMessageRead("m1") {
		t.Error("first MarkMessageRead = false, want true")
	}
	if s.MarkMessageRead("m1") {
		t.Error("second MarkMessageRead = true, want false (already read)")
	}
	if s.MarkMessageRead("missing") {
		t.Error("MarkMessageRead(missing) = true")
	}
	m, _ := s.Message("m1")
	if !m.Read {
		t.Error("m1 not read")
	}
}

func TestReplaceConversations(t *testing.T) {
	s := New(nil)
	last := msg("m9", "u2", "me", 90)
	s.ReplaceConversations([]model.Conversation{
		{ID: "c1", Peer: model.User{ID: "u1", Username: "ana"}, UnreadCount: 2},
		{ID: "c2", Peer: model.User{ID: "u2", Username: "bob"}, LastMessage: &last, UnreadCount: -4},
		{ID: "c3", Peer: model.User{ID: "u1", Username: "ana2"}},
		{ID: "c4"},
	})

	convs := s.Conversations()
	if len(convs) != 2 {
		t.Fatalf("got %d conversations, want 2", len(convs))
	}
	if convs[0].Peer.ID != "u2" {
		t.Errorf("first = %s, want u2 (most recent)", convs[0].Peer.ID)
	}
	if convs[0].UnreadCount != 0 {
		t.Errorf("negative unread not clamped: %d", convs[0].UnreadCount)
	}
	c, _ := s.Conversation("u1")
	if c.ID != "c3" || c.Peer.Username != "ana2" {
		t.Errorf("duplicate peer: got %+v, want later entry c3", c)
	}

	s.ReplaceConversations(nil)
	if n := len(s.Conversations()); n != 0 {
		t.Errorf("got %d conversations after empty snapshot, want 0", n)
	}
}

func TestEnsureConversation(t *testing.T) {
	s := New(nil)
	calls := 0
	newID := func() string { calls++; return fmt.Sprintf("local-%d", calls) }

	c, created := s.EnsureConversation(model.MinimalPeer("u1"), newID)
	if !created || c.ID != "local-1" || c.Peer.Username != model.UnknownUsername {
		t.Errorf("got %+v created=%v, want new placeholder local-1", c, created)
	}

	c, created = s.EnsureConversation(model.User{ID: "u1", Username: "ana", Email: "a@x"}, newID)
	if created {
		t.Error("second Ensure created a duplicate")
	}
	if c.ID != "local-1" || c.Peer.Username != "ana" {
		t.Errorf("got %+v, want local-1 with real profile", c)
	}

	c, _ = s.EnsureConversation(model.MinimalPeer("u1"), newID)
	if c.Peer.Username != "ana" {
		t.Error("placeholder overwrote a real profile")
	}
	if calls != 1 {
		t.Errorf("newID called %d times, want 1", calls)
	}
}

func TestUpdateConversation(t *testing.T) {
	s := New(nil)
	s.ReplaceConversations([]model.Conversation{{ID: "c1", Peer: model.User{ID: "u1"}}})
	s.OpenConversation("u1")

	var sawOpen bool
	ok := s.UpdateConversation("u1", func(c *model.Conversation, open bool) {
		sawOpen = open
		c.UnreadCount -= 3
	})
	if !ok || !sawOpen {
		t.Errorf("ok=%v open=%v, want true true", ok, sawOpen)
	}
	c, _ := s.Conversation("u1")
	if c.UnreadCount != 0 {
		t.Errorf("unread = %d, want clamped 0", c.UnreadCount)
	}
	if s.UpdateConversation("nobody", func(*model.Conversation, bool) {}) {
		t.Error("UpdateConversation on unknown peer = true")
	}
}

func TestPresence(t *testing.T) {
	s := New(nil)
	s.ReplaceOnline([]string{"u1", "u2"})
	if !s.SetOnline("u3", true) {
		t.Error("SetOnline(u3) reported no change")
	}
	if s.SetOnline("u3", true) {
		t.Error("repeated SetOnline(u3) reported a change")
	}
	s.SetOnline("u2", false)
	s.SetOnline("u2", false)

	if got := fmt.Sprint(s.OnlineUsers()); got != "[u1 u3]" {
		t.Errorf("online = %s, want [u1 u3]", got)
	}

	s.SetTyping("u1", true)
	if !s.IsTyping("u1") {
		t.Error("u1 not typing")
	}
	s.ClearPresence()
	if len(s.OnlineUsers()) != 0 || len(s.TypingUsers()) != 0 {
		t.Error("ClearPresence left members behind")
	}
}

func TestLoadingCounter(t *testing.T) {
	s := New(nil)
	a := s.BeginLoad()
	b := s.BeginLoad()
	s.EndLoad(a)
	if !s.Loading() {
		t.Error("Loading() = false with one call in flight")
	}
	s.EndLoad(b)
	if s.Loading() {
		t.Error("Loading() = true with no calls in flight")
	}
	s.EndLoad(b)
	if s.Loading() {
		t.Error("extra EndLoad made Loading() true")
	}
}

func TestLoadBegunBeforeResetDoesNotEndNewerLoad(t *testing.T) {
	s := New(nil)
	before := s.BeginLoad()
	s.Reset()
	after := s.BeginLoad()

	s.EndLoad(before)
	if !s.Loading() {
		t.Error("Loading() = false while a call begun after Reset is in flight")
	}
	s.EndLoad(after)
	if s.Loading() {
		t.Error("Loading() = true with no calls in flight")
	}
}

func TestResetWipesEverything(t *testing.T) {
	s := New(nil)
	s.ReplaceConversations([]model.Conversation{{ID: "c1", Peer: model.User{ID: "u1"}}})
	s.OpenConversation("u1")
	s.AppendMessage(msg("m1", "u1", "me", 1))
	s.ReplaceOnline([]string{"u1"})
	s.SetTyping("u1", true)
	epoch := s.BeginLoad()
	s.SetError(chaterr.New(chaterr.KindServer, "boom"))

	s.Reset()

	snap := s.Snapshot()
	if snap.CurrentConversationID != "" || len(snap.Messages) != 0 || len(snap.Conversations) != 0 ||
		len(snap.OnlineUsers) != 0 || len(snap.TypingUsers) != 0 || snap.Loading || snap.Error != nil {
		t.Errorf("state after Reset = %+v, want empty", snap)
	}
	s.EndLoad(epoch)
	if s.Loading() {
		t.Error("EndLoad after Reset left loading set")
	}
}

func TestSnapshotIsUnaliased(t *testing.T) {
	s := New(nil)
	last := msg("m1", "u1", "me", 1)
	s.ReplaceConversations([]model.Conversation{{ID: "c1", Peer: model.User{ID: "u1"}, LastMessage: &last}})
	s.OpenConversation("u1")
	s.AppendMessage(msg("m1", "u1", "me", 1))

	snap := s.Snapshot()
	snap.Messages[0].Content = "mutated"
	snap.Conversations[0].LastMessage.Content = "mutated"

	m, _ := s.Message("m1")
	c, _ := s.Conversation("u1")
	if m.Content == "mutated" || c.LastMessage.Content == "mutated" {
		t.Error("snapshot aliases store state")
	}
}

func TestMutationsPublishEvents(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("state.", 16)
	defer unsub()

	s := New(b)
	s.OpenConversation("u1")
	s.SetOnline("u1", true)
	s.SetError(chaterr.Validation("x"))

	want := []string{bus.KindMessages, bus.KindPresence, bus.KindError}
	for _, kind := range want {
		select {
		case evt := <-ch:
			if evt.Kind != kind {
				t.Errorf("event kind = %q, want %q", evt.Kind, kind)
			}
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for %s", kind)
		}
	}
}
