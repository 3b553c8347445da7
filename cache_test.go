package voltgo

import (
	"fmt"
	"testing"
)

func testMessage(id, channel, author string) *Message {
	return &Message{
		ID:        EntityID(id),
		ChannelID: EntityID(channel),
		AuthorID:  EntityID(author),
	}
}

func TestStoreMessageFIFOEviction(t *testing.T) {
	t.Parallel()

	const capacity = 3
	store := NewStore(capacity)

	ids := make([]EntityID, 0, 5)
	for i := 0; i < 5; i++ {
		id := EntityID(fmt.Sprintf("msg-%d", i))
		ids = append(ids, id)
		store.PutMessage(testMessage(string(id), "chan-1", "user-1"))
	}

	if got := store.MessageCount(); got != capacity {
		t.Fatalf("message count = %d, want %d", got, capacity)
	}
	for _, id := range ids[:2] {
		if _, exists := store.Message(id); exists {
			t.Fatalf("message %s should have been evicted", id)
		}
	}
	for _, id := range ids[2:] {
		if _, exists := store.Message(id); !exists {
			t.Fatalf("message %s should be retained", id)
		}
	}
}

func TestStoreMessageReplaceKeepsInsertionOrder(t *testing.T) {
	t.Parallel()

	store := NewStore(2)

	store.PutMessage(testMessage("msg-1", "chan-1", "user-1"))
	store.PutMessage(testMessage("msg-2", "chan-1", "user-1"))

	// Replacing an existing id must not consume capacity or refresh its
	// eviction position.
	updated := testMessage("msg-1", "chan-1", "user-1")
	updated.Content = "edited"
	store.PutMessage(updated)

	if got := store.MessageCount(); got != 2 {
		t.Fatalf("message count = %d, want 2", got)
	}
	cached, exists := store.Message("msg-1")
	if !exists {
		t.Fatal("replaced message missing")
	}
	if cached.Content != "edited" {
		t.Fatalf("content = %q, want %q", cached.Content, "edited")
	}

	store.PutMessage(testMessage("msg-3", "chan-1", "user-1"))
	if _, exists := store.Message("msg-1"); exists {
		t.Fatal("msg-1 should be evicted first despite being replaced last")
	}
	if _, exists := store.Message("msg-2"); !exists {
		t.Fatal("msg-2 should be retained")
	}
}

func TestStoreMessageLifecycle(t *testing.T) {
	t.Parallel()

	store := NewStore(10)
	message := testMessage("msg-1", "chan-1", "user-1")

	store.PutMessage(message)
	cached, exists := store.Message("msg-1")
	if !exists {
		t.Fatal("get after put missed")
	}
	if cached != message {
		t.Fatal("get returned a different snapshot")
	}

	store.RemoveMessage("msg-1")
	if _, exists := store.Message("msg-1"); exists {
		t.Fatal("get after remove should miss")
	}
	if got := store.MessageCount(); got != 0 {
		t.Fatalf("message count = %d, want 0", got)
	}

	// Removing a missing id is a no-op.
	store.RemoveMessage("msg-1")
}

func TestStoreUserLookups(t *testing.T) {
	t.Parallel()

	store := NewStore(10)
	store.PutUser(&User{ID: "user-1", Username: "alice"})

	if _, exists := store.User("user-2"); exists {
		t.Fatal("unexpected hit for unknown id")
	}
	user, exists := store.UserByName("alice")
	if !exists {
		t.Fatal("name lookup missed")
	}
	if user.ID != "user-1" {
		t.Fatalf("user id = %s, want user-1", user.ID)
	}

	// A rename retires the old name index entry.
	store.PutUser(&User{ID: "user-1", Username: "alicia"})
	if _, exists := store.UserByName("alice"); exists {
		t.Fatal("stale name index entry after rename")
	}
	if _, exists := store.UserByName("alicia"); !exists {
		t.Fatal("new name index entry missing")
	}
}

func TestStoreSelfTracksUserReplacement(t *testing.T) {
	t.Parallel()

	store := NewStore(10)
	store.SetSelf(&User{ID: "user-1", Username: "bot"})

	if _, exists := store.User("user-1"); !exists {
		t.Fatal("self should be cached as a user")
	}

	store.PutUser(&User{ID: "user-1", Username: "bot", Online: true})
	self, known := store.Self()
	if !known {
		t.Fatal("self unknown after replacement")
	}
	if !self.Online {
		t.Fatal("self should reflect the replaced snapshot")
	}
}

func TestStoreChannelAndServer(t *testing.T) {
	t.Parallel()

	store := NewStore(10)
	store.PutChannel(&Channel{ID: "chan-1", Name: "general"})
	store.PutServer(&Server{ID: "srv-1", Name: "testing"})

	if _, exists := store.Channel("chan-1"); !exists {
		t.Fatal("channel lookup missed")
	}
	if _, exists := store.Server("srv-1"); !exists {
		t.Fatal("server lookup missed")
	}

	store.RemoveChannel("chan-1")
	if _, exists := store.Channel("chan-1"); exists {
		t.Fatal("channel should be removed")
	}
	store.RemoveChannel("chan-1")
}
