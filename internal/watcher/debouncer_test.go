package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitBatch(t *testing.T, d *Debouncer) []FileEvent {
	t.Helper()
	select {
	case batch := <-d.Output():
		return batch
	case <-time.After(2 * time.Second):
		t.Fatal("no batch emitted")
		return nil
	}
}

func TestDebouncer_CoalescesWritesWithinWindow(t *testing.T) {
	d := NewDebouncer(30*time.Millisecond, nil)
	defer d.Stop()

	for i := 0; i < 5; i++ {
		d.Add(FileEvent{Path: "/m/clip.mp4", Operation: OpModify})
	}

	batch := waitBatch(t, d)
	require.Len(t, batch, 1)
	assert.Equal(t, OpModify, batch[0].Operation)
}

func TestDebouncer_CreateThenModifyStaysCreate(t *testing.T) {
	d := NewDebouncer(30*time.Millisecond, nil)
	defer d.Stop()

	d.Add(FileEvent{Path: "/m/clip.mp4", Operation: OpCreate})
	d.Add(FileEvent{Path: "/m/clip.mp4", Operation: OpModify})

	batch := waitBatch(t, d)
	require.Len(t, batch, 1)
	assert.Equal(t, OpCreate, batch[0].Operation)
}

func TestDebouncer_CreateThenDeleteCancels(t *testing.T) {
	d := NewDebouncer(30*time.Millisecond, nil)
	defer d.Stop()

	d.Add(FileEvent{Path: "/m/clip.mp4", Operation: OpCreate})
	d.Add(FileEvent{Path: "/m/clip.mp4", Operation: OpDelete})
	d.Add(FileEvent{Path: "/m/other.mp4", Operation: OpCreate})

	batch := waitBatch(t, d)
	require.Len(t, batch, 1)
	assert.Equal(t, "/m/other.mp4", batch[0].Path)
}

func TestDebouncer_DeleteThenCreateBecomesModify(t *testing.T) {
	d := NewDebouncer(30*time.Millisecond, nil)
	defer d.Stop()

	d.Add(FileEvent{Path: "/m/clip.mp4", Operation: OpDelete})
	d.Add(FileEvent{Path: "/m/clip.mp4", Operation: OpCreate})

	batch := waitBatch(t, d)
	require.Len(t, batch, 1)
	assert.Equal(t, OpModify, batch[0].Operation)
}

func TestDebouncer_StopDropsLateEvents(t *testing.T) {
	d := NewDebouncer(10*time.Millisecond, nil)
	d.Stop()

	d.Add(FileEvent{Path: "/m/clip.mp4", Operation: OpCreate})

	_, ok := <-d.Output()
	assert.False(t, ok, "output should be closed")
}
