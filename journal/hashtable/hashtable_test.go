package hashtable

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/appgate/journaldreader/journal/storage"
)

func TestTable_ItemsAndCount(t *testing.T) {
	const offset = 208
	const capacity = 4
	buf := make([]byte, offset+capacity*ItemSize)

	// Slot 0: occupied. Slot 1: empty. Slot 2: occupied. Slot 3: empty.
	binary.LittleEndian.PutUint64(buf[offset:], 1000)   // slot 0 head_hash_offset
	binary.LittleEndian.PutUint64(buf[offset+8:], 1008) // slot 0 tail_hash_offset
	binary.LittleEndian.PutUint64(buf[offset+2*ItemSize:], 2000)
	binary.LittleEndian.PutUint64(buf[offset+2*ItemSize+8:], 2008)

	adapter := storage.NewInMemory(map[string][]byte{"f": buf})
	require.NoError(t, adapter.Open(context.Background(), "f"))

	table := NewTable(offset, capacity*ItemSize)
	require.Equal(t, uint64(capacity), table.Capacity)

	var items []Item
	it := table.Items(adapter)
	for it.Next(context.Background()) {
		items = append(items, it.Item())
	}
	require.NoError(t, it.Err())
	require.Len(t, items, capacity)
	require.Equal(t, Item{HeadHashOffset: 1000, TailHashOffset: 1008}, items[0])
	require.Equal(t, Item{}, items[1])
	require.Equal(t, Item{HeadHashOffset: 2000, TailHashOffset: 2008}, items[2])
	require.Equal(t, Item{}, items[3])

	count, err := table.Count(context.Background(), adapter)
	require.NoError(t, err)
	require.Equal(t, uint64(2), count)
	require.InDelta(t, 0.5, table.FillLevel(count), 0.0001)
}

func TestTable_Count_EmptyTable(t *testing.T) {
	adapter := storage.NewInMemory(map[string][]byte{"f": make([]byte, 208)})
	require.NoError(t, adapter.Open(context.Background(), "f"))

	table := NewTable(208, 0)
	count, err := table.Count(context.Background(), adapter)
	require.NoError(t, err)
	require.Equal(t, uint64(0), count)
	require.Equal(t, float64(0), table.FillLevel(count))
}
