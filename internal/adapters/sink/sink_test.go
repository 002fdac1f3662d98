package sink

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/cadence/internal/domain/model"
)

func readLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var lines []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var m map[string]any
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatal(err)
		}
		lines = append(lines, m)
	}
	return lines
}

func TestJSONLSink(t *testing.T) {
	ctx := context.Background()

	Convey("Given a JSONL sink", t, func() {
		path := filepath.Join(t.TempDir(), "out", "session.jsonl")

		s, err := NewJSONL(path)
		So(err, ShouldBeNil)

		Convey("When records of each type are written", func() {
			So(s.WriteTaskResult(ctx, model.TaskResult{
				Kind:       model.KindParityCheck,
				Tag:        "task-0001",
				Response:   "yes",
				Correct:    true,
				ReactionMS: 640,
			}), ShouldBeNil)
			So(s.WriteAdaptation(ctx, model.AdaptationRecord{
				Step:     1,
				ActionID: 2,
				Reward:   0.15,
				Strategy: model.StrategyHeuristic,
			}), ShouldBeNil)
			So(s.WriteSummary(ctx, model.SessionSummary{
				SessionID:  "abc",
				TotalTasks: 10,
				Accuracy:   0.8,
			}), ShouldBeNil)
			So(s.Close(), ShouldBeNil)

			Convey("Then one typed envelope per record should be on disk", func() {
				lines := readLines(t, path)
				So(lines, ShouldHaveLength, 3)
				So(lines[0]["type"], ShouldEqual, "task_result")
				So(lines[0]["kind"], ShouldEqual, "parity_check")
				So(lines[1]["type"], ShouldEqual, "adaptation")
				So(lines[2]["type"], ShouldEqual, "session_summary")

				data, ok := lines[0]["data"].(map[string]any)
				So(ok, ShouldBeTrue)
				So(data["task_id"], ShouldEqual, "task-0001")
				So(data["rt_ms"], ShouldAlmostEqual, 640)
			})
		})

		Convey("When the sink is reopened", func() {
			So(s.WriteSummary(ctx, model.SessionSummary{SessionID: "one"}), ShouldBeNil)
			So(s.Close(), ShouldBeNil)

			again, err := NewJSONL(path)
			So(err, ShouldBeNil)
			So(again.WriteSummary(ctx, model.SessionSummary{SessionID: "two"}), ShouldBeNil)
			So(again.Close(), ShouldBeNil)

			Convey("Then earlier lines should survive the append", func() {
				So(readLines(t, path), ShouldHaveLength, 2)
			})
		})
	})
}
