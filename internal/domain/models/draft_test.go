package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeSlots() GridSlots {
	return GridSlots{
		NewGridSlot("drafts/images/a.jpg", "left"),
		NewGridSlot("drafts/images/b.jpg", "middle"),
		NewGridSlot("drafts/images/c.jpg", "right"),
	}
}

func TestNewDraft(t *testing.T) {
	t.Run("valid triplet", func(t *testing.T) {
		draft, err := NewDraft(makeSlots())
		require.NoError(t, err)

		assert.Equal(t, DraftStatusDraft, draft.Status)
		assert.False(t, draft.Posted())
		assert.Nil(t, draft.PostedAt)
		assert.Len(t, draft.Slots, GridSize)
	})

	t.Run("wrong slot count", func(t *testing.T) {
		_, err := NewDraft(makeSlots()[:2])
		assert.ErrorIs(t, err, ErrInvalidSlotCount)
	})

	t.Run("empty caption history", func(t *testing.T) {
		slots := makeSlots()
		slots[1].CaptionHistory = nil

		_, err := NewDraft(slots)
		assert.ErrorIs(t, err, ErrEmptyCaptionHistory)
	})
}

func TestGridSlot_CaptionHistory(t *testing.T) {
	slot := NewGridSlot("k.jpg", "v1")

	assert.Equal(t, "v1", slot.Caption())

	slot.AppendCaption("v2")
	slot.AppendCaption("v3")

	assert.Equal(t, "v3", slot.Caption())
	assert.Equal(t, []string{"v1", "v2", "v3"}, slot.CaptionHistory)

	assert.Equal(t, "v2", slot.PrevCaption())
	assert.Equal(t, "v1", slot.PrevCaption())
	// pointer stops at the oldest entry
	assert.Equal(t, "v1", slot.PrevCaption())

	assert.Equal(t, "v2", slot.NextCaption())
	assert.Equal(t, "v3", slot.NextCaption())
	assert.Equal(t, "v3", slot.NextCaption())

	// a new version while pointing mid-history still appends, never rewrites
	slot.PrevCaption()
	slot.AppendCaption("v4")
	assert.Equal(t, []string{"v1", "v2", "v3", "v4"}, slot.CaptionHistory)
	assert.Equal(t, "v4", slot.Caption())
}

func TestGridSlots_Reorder(t *testing.T) {
	slots := makeSlots()

	t.Run("applies permutation", func(t *testing.T) {
		out, err := slots.Reorder([]int{2, 0, 1})
		require.NoError(t, err)

		assert.Equal(t, "right", out[0].Caption())
		assert.Equal(t, "left", out[1].Caption())
		assert.Equal(t, "middle", out[2].Caption())
		// original untouched
		assert.Equal(t, "left", slots[0].Caption())
	})

	t.Run("crop data travels with the slot", func(t *testing.T) {
		slots := makeSlots()
		slots[2].CropRatio = CropRatioWide
		slots[2].CropPosition = CropPosition{X: 10, Y: 90}

		out, err := slots.Reorder([]int{2, 1, 0})
		require.NoError(t, err)

		assert.Equal(t, CropRatioWide, out[0].CropRatio)
		assert.Equal(t, CropPosition{X: 10, Y: 90}, out[0].CropPosition)
	})

	t.Run("rejects bad orders", func(t *testing.T) {
		for _, order := range [][]int{
			{0, 1},
			{0, 1, 2, 0},
			{0, 0, 1},
			{0, 1, 3},
			{-1, 1, 2},
			nil,
		} {
			_, err := slots.Reorder(order)
			assert.ErrorIs(t, err, ErrInvalidPermutation, "order %v", order)
		}
	})

	t.Run("identity is allowed", func(t *testing.T) {
		out, err := slots.Reorder([]int{0, 1, 2})
		require.NoError(t, err)
		assert.Equal(t, slots, out)
	})
}

func TestCropRatio(t *testing.T) {
	for _, r := range []CropRatio{CropRatioOriginal, CropRatioSquare, CropRatioPortrait, CropRatioWide} {
		assert.True(t, r.Valid(), string(r))
	}
	assert.False(t, CropRatio("3:2").Valid())

	_, ok := CropRatioOriginal.AspectValue()
	assert.False(t, ok)

	aspect, ok := CropRatioPortrait.AspectValue()
	require.True(t, ok)
	assert.InDelta(t, 0.8, aspect, 1e-9)
}

func TestCropPosition_Clamp(t *testing.T) {
	assert.Equal(t, CropPosition{X: 0, Y: 100}, CropPosition{X: -5, Y: 160}.Clamp())
	assert.Equal(t, CropPosition{X: 42, Y: 7}, CropPosition{X: 42, Y: 7}.Clamp())
}

func TestGridSlots_ScanValue(t *testing.T) {
	slots := makeSlots()
	slots[0].AppendCaption("edited")

	raw, err := slots.Value()
	require.NoError(t, err)

	var restored GridSlots
	require.NoError(t, restored.Scan(raw.([]byte)))

	assert.Equal(t, slots, restored)
	assert.Equal(t, "edited", restored[0].Caption())
}
