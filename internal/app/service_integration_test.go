package service_test

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	service "github.com/okian/cadence/internal/app"
	"github.com/okian/cadence/internal/adapters/snapshot"
	"github.com/okian/cadence/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func sinkTypes(t *testing.T, path string) map[string]int {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	counts := map[string]int{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var line struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(sc.Bytes(), &line); err != nil {
			t.Fatal(err)
		}
		counts[line.Type]++
	}
	return counts
}

func TestServiceIntegration_Persistence(t *testing.T) {
	ctx := context.Background()

	Convey("Given a session writing through real adapters", t, func() {
		dir := t.TempDir()
		sinkPath := filepath.Join(dir, "session.jsonl")
		dbPath := filepath.Join(dir, "cadence.db")

		svc := service.New(
			service.WithSessionID("persisted"),
			service.WithSeed(33),
			service.WithBatches(3, 2),
			service.WithDifficulty(fastDifficulty()),
			service.WithSinkPath(sinkPath),
			service.WithSnapshotPath(dbPath),
		)
		So(svc.Start(ctx), ShouldBeNil)

		Convey("When the session runs to completion", func() {
			drive(ctx, svc, 600_000)
			So(svc.Done(), ShouldBeTrue)
			svc.Stop()

			Convey("Then the sink should hold every record type", func() {
				counts := sinkTypes(t, sinkPath)
				So(counts["task_result"], ShouldEqual, 6)
				So(counts["session_summary"], ShouldEqual, 1)
			})

			Convey("Then the finished session's snapshot should be gone", func() {
				store, err := snapshot.New(ctx, dbPath)
				So(err, ShouldBeNil)
				defer store.Close()

				_, err = store.Load(ctx, "persisted")
				So(errors.Is(err, snapshot.ErrNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestServiceIntegration_Resume(t *testing.T) {
	ctx := context.Background()

	Convey("Given a session interrupted after its first batch", t, func() {
		dir := t.TempDir()
		dbPath := filepath.Join(dir, "cadence.db")

		first := service.New(
			service.WithSessionID("resumable"),
			service.WithSeed(44),
			service.WithBatches(2, 3),
			service.WithDifficulty(fastDifficulty()),
			service.WithSnapshotPath(dbPath),
		)
		So(first.Start(ctx), ShouldBeNil)

		var now int64
		for ; now < 600_000; now += 100 {
			So(first.Tick(ctx, now), ShouldBeNil)
			So(first.HandleResponse(ctx, model.Response{Symbol: model.SymbolLeft, AtMS: now}), ShouldBeNil)
			if first.GetStats()["batch_index"].(int) >= 1 {
				break
			}
		}
		So(first.GetStats()["batch_index"], ShouldEqual, 1)
		first.Stop()

		Convey("When a new service resumes the same session", func() {
			second := service.New(
				service.WithSessionID("resumable"),
				service.WithSeed(44),
				service.WithBatches(2, 3),
				service.WithDifficulty(fastDifficulty()),
				service.WithSnapshotPath(dbPath),
				service.WithResume(true),
			)
			So(second.Start(ctx), ShouldBeNil)
			defer second.Stop()

			Convey("Then it should pick up after the persisted batch", func() {
				So(second.GetStats()["batch_index"], ShouldEqual, 1)
				So(second.GetStats()["total_completed"].(int), ShouldBeGreaterThanOrEqualTo, 2)

				drive(ctx, second, 600_000)
				So(second.Done(), ShouldBeTrue)

				sum, ok := second.Summary()
				So(ok, ShouldBeTrue)
				// Both the restored and the resumed tasks count.
				So(sum.TotalTasks, ShouldEqual, 6)
			})
		})
	})
}

func TestServiceIntegration_PolicyMode(t *testing.T) {
	ctx := context.Background()

	Convey("Given a policy-mode session with a tempo-up artifact", t, func() {
		dir := t.TempDir()
		artifact := filepath.Join(dir, "policy.json")

		// Twelve-dimensional state, three actions, bias pinned to "tempo up".
		weights := make([][]float64, 3)
		for i := range weights {
			weights[i] = make([]float64, 12)
		}
		blob, err := json.Marshal(map[string]any{
			"state_dim":  12,
			"action_dim": 3,
			"weights":    weights,
			"bias":       []float64{0, 0, 1},
		})
		So(err, ShouldBeNil)
		So(os.WriteFile(artifact, blob, 0o600), ShouldBeNil)

		svc := service.New(
			service.WithSessionID("policy-session"),
			service.WithSeed(55),
			service.WithMode(model.StrategyPolicy),
			service.WithPolicyPath(artifact),
			service.WithBatches(12, 1),
			service.WithDifficulty(fastDifficulty()),
		)
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When the session runs with constant responses", func() {
			drive(ctx, svc, 600_000)

			Convey("Then the policy should have pushed tempo upward", func() {
				So(svc.Done(), ShouldBeTrue)

				sum, ok := svc.Summary()
				So(ok, ShouldBeTrue)
				So(sum.TotalTasks, ShouldEqual, 12)

				stats := svc.GetStats()
				So(stats["tempo_offset"].(int), ShouldBeGreaterThan, 0)
			})
		})
	})
}

func TestServiceIntegration_PolicyArtifactMissing(t *testing.T) {
	ctx := context.Background()

	Convey("Given policy mode with no usable artifact", t, func() {
		svc := service.New(
			service.WithSessionID("degraded"),
			service.WithSeed(66),
			service.WithMode(model.StrategyPolicy),
			service.WithPolicyPath(filepath.Join(t.TempDir(), "missing.json")),
			service.WithBatches(3, 1),
			service.WithDifficulty(fastDifficulty()),
		)

		Convey("When the session starts and runs", func() {
			So(svc.Start(ctx), ShouldBeNil)
			defer svc.Stop()

			drive(ctx, svc, 600_000)

			Convey("Then the control loop should survive on neutral decisions", func() {
				So(svc.Done(), ShouldBeTrue)
				So(svc.GetStats()["tempo_offset"], ShouldEqual, 0)
			})
		})
	})
}
