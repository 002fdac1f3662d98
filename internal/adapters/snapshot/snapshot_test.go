package snapshot

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/cadence/internal/domain/model"
	"github.com/okian/cadence/pkg/logger"
)

func init() {
	_ = logger.Init()
}

func TestSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()

	Convey("Given an open snapshot store", t, func() {
		store, err := New(ctx, filepath.Join(t.TempDir(), "state", "cadence.db"))
		So(err, ShouldBeNil)
		defer store.Close()

		snap := model.Snapshot{
			SessionID:   "session-1",
			Level:       4,
			TempoOffset: -1,
			BatchIndex:  2,
			AdaptStep:   5,
			Completed: []model.TaskResult{
				{
					Kind:       model.KindRuleSwitch,
					Tag:        "task-0001",
					CreatedMS:  1000,
					FinishedMS: 1800,
					Response:   "left",
					Correct:    true,
					ReactionMS: 800,
				},
				{
					Kind:    model.KindParityCheck,
					Tag:     "task-0002",
					Timeout: true,
				},
			},
		}

		Convey("When a snapshot is saved and loaded", func() {
			So(store.Save(ctx, snap), ShouldBeNil)

			got, err := store.Load(ctx, "session-1")

			Convey("Then the snapshot should round-trip intact", func() {
				So(err, ShouldBeNil)
				So(got.Level, ShouldEqual, 4)
				So(got.TempoOffset, ShouldEqual, -1)
				So(got.BatchIndex, ShouldEqual, 2)
				So(got.AdaptStep, ShouldEqual, 5)
				So(got.Completed, ShouldHaveLength, 2)
				So(got.Completed[0].Kind, ShouldEqual, model.KindRuleSwitch)
				So(got.Completed[0].ReactionMS, ShouldEqual, 800)
				So(got.Completed[1].Timeout, ShouldBeTrue)
			})
		})

		Convey("When the same session is saved again", func() {
			So(store.Save(ctx, snap), ShouldBeNil)

			snap.Level = 5
			snap.Completed = snap.Completed[:1]
			So(store.Save(ctx, snap), ShouldBeNil)

			got, err := store.Load(ctx, "session-1")

			Convey("Then the newer snapshot should replace the older one", func() {
				So(err, ShouldBeNil)
				So(got.Level, ShouldEqual, 5)
				So(got.Completed, ShouldHaveLength, 1)
			})
		})

		Convey("When the session is unknown", func() {
			_, err := store.Load(ctx, "ghost")

			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		})

		Convey("When a snapshot is deleted", func() {
			So(store.Save(ctx, snap), ShouldBeNil)
			So(store.Delete(ctx, "session-1"), ShouldBeNil)

			_, err := store.Load(ctx, "session-1")
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestSnapshotCorruptResults(t *testing.T) {
	ctx := context.Background()

	Convey("Given a snapshot with a corrupt result row", t, func() {
		store, err := NewMemory(ctx)
		So(err, ShouldBeNil)
		defer store.Close()

		snap := model.Snapshot{
			SessionID: "session-2",
			Level:     3,
			Completed: []model.TaskResult{
				{Kind: model.KindCodeComparison, Tag: "task-0001", Correct: true, Response: "match", ReactionMS: 500},
			},
		}
		So(store.Save(ctx, snap), ShouldBeNil)

		_, err = store.db.ExecContext(ctx,
			`INSERT INTO results (session_id, seq, payload) VALUES (?, ?, ?)`,
			"session-2", 99, "{broken")
		So(err, ShouldBeNil)

		Convey("When the snapshot is loaded", func() {
			got, err := store.Load(ctx, "session-2")

			Convey("Then the corrupt row should be skipped, not fatal", func() {
				So(err, ShouldBeNil)
				So(got.Completed, ShouldHaveLength, 1)
				So(got.Completed[0].Tag, ShouldEqual, "task-0001")
			})
		})
	})
}
