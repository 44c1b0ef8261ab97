package thread

import (
	"testing"

	"github.com/ebarros/parley/internal/model"
)

func msg(id string, createdAt int64) *model.Message {
	return &model.Message{ID: id, ChatID: "c1", SenderID: "u1", Text: id, CreatedAt: createdAt}
}

func ids(t *Thread) []string {
	msgs := t.Messages()
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func TestLoadSortsAscending(t *testing.T) {
	th := New()
	th.Load("c1", []*model.Message{msg("m3", 300), msg("m1", 100), msg("m2", 200)})

	got := ids(th)
	want := []string{"m1", "m2", "m3"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestLoadReplacesWholesale(t *testing.T) {
	th := New()
	th.Load("c1", []*model.Message{msg("m1", 100)})
	th.Load("c2", []*model.Message{{ID: "x1", ChatID: "c2", CreatedAt: 50}})

	if th.ChatID() != "c2" {
		t.Errorf("ChatID() = %q, want c2", th.ChatID())
	}
	if got := ids(th); len(got) != 1 || got[0] != "x1" {
		t.Errorf("messages = %v, want [x1]", got)
	}
}

func TestAppendDedupByID(t *testing.T) {
	th := New()
	th.Load("c1", []*model.Message{msg("m1", 100)})

	if !th.Append(msg("m2", 200)) {
		t.Fatal("first append rejected")
	}
	// The identical push delivered again must be a no-op.
	if th.Append(msg("m2", 200)) {
		t.Error("duplicate append accepted")
	}
	if got := ids(th); len(got) != 2 || got[0] != "m1" || got[1] != "m2" {
		t.Errorf("messages = %v, want [m1 m2]", got)
	}
}

func TestAppendManyDuplicates(t *testing.T) {
	th := New()
	th.Load("c1", nil)

	seq := []string{"a", "b", "a", "c", "b", "a", "c"}
	for i, id := range seq {
		th.Append(msg(id, int64(i)))
	}
	if th.Len() != 3 {
		t.Errorf("Len() = %d, want 3 distinct ids", th.Len())
	}
}

func TestAppendOutOfOrderKeepsAscending(t *testing.T) {
	th := New()
	th.Load("c1", []*model.Message{msg("m1", 100), msg("m3", 300)})

	// A delayed push with an earlier server timestamp.
	th.Append(msg("m2", 200))

	got := ids(th)
	want := []string{"m1", "m2", "m3"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestAppendRejectsOtherChat(t *testing.T) {
	th := New()
	th.Load("c1", nil)

	other := &model.Message{ID: "m9", ChatID: "c2", CreatedAt: 1}
	if th.Append(other) {
		t.Error("append accepted a message for another chat")
	}
	if th.Len() != 0 {
		t.Errorf("Len() = %d, want 0", th.Len())
	}
}

func TestMergeReadReceipt(t *testing.T) {
	th := New()
	th.Load("c1", []*model.Message{msg("m1", 100)})

	if !th.MergeReadReceipt("m1", "u2") {
		t.Fatal("first receipt not merged")
	}
	if th.MergeReadReceipt("m1", "u2") {
		t.Error("re-applied receipt should be a no-op")
	}
	// Unknown id: receipt may precede the history page; must not error.
	if th.MergeReadReceipt("ghost", "u2") {
		t.Error("unknown message id should be a no-op")
	}

	msgs := th.Messages()
	if len(msgs[0].ReadBy) != 1 || msgs[0].ReadBy[0] != "u2" {
		t.Errorf("ReadBy = %v, want [u2]", msgs[0].ReadBy)
	}
}

func TestReadSetNeverShrinks(t *testing.T) {
	th := New()
	loaded := msg("m1", 100)
	loaded.ReadBy = []string{"u2"}
	th.Load("c1", []*model.Message{loaded})

	th.MergeReadReceipt("m1", "u3")
	th.MergeReadReceipt("m1", "u2")

	got := th.Messages()[0].ReadBy
	if len(got) != 2 {
		t.Errorf("ReadBy = %v, want superset of pre-load value with u3 added", got)
	}
}

func TestRemove(t *testing.T) {
	th := New()
	th.Load("c1", []*model.Message{msg("m1", 100), msg("m2", 200)})

	if !th.Remove("m1") {
		t.Fatal("remove of known id failed")
	}
	if th.Remove("m1") {
		t.Error("second remove should report unknown id")
	}
	if got := ids(th); len(got) != 1 || got[0] != "m2" {
		t.Errorf("messages = %v, want [m2]", got)
	}

	// A removed id can arrive again (e.g. stale push) and is re-added;
	// dedup state follows the list.
	if !th.Append(msg("m1", 100)) {
		t.Error("append of removed id rejected")
	}
}

func TestMessagesReturnsCopies(t *testing.T) {
	th := New()
	th.Load("c1", []*model.Message{msg("m1", 100)})

	snapshot := th.Messages()
	snapshot[0].Text = "mutated"
	snapshot[0].ReadBy = append(snapshot[0].ReadBy, "u9")

	if th.Messages()[0].Text != "m1" {
		t.Error("snapshot mutation leaked into the thread")
	}
	if len(th.Messages()[0].ReadBy) != 0 {
		t.Error("snapshot ReadBy mutation leaked into the thread")
	}
}

func TestClear(t *testing.T) {
	th := New()
	th.Load("c1", []*model.Message{msg("m1", 100)})
	th.Clear()

	if th.ChatID() != "" || th.Len() != 0 {
		t.Errorf("after Clear: chatID=%q len=%d", th.ChatID(), th.Len())
	}
}
