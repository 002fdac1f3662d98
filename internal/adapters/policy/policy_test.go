package policy

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func writeArtifact(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	Convey("Given policy artifacts on disk", t, func() {
		Convey("When the artifact is well formed", func() {
			path := writeArtifact(t, `{
				"state_dim": 2,
				"action_dim": 3,
				"weights": [[1, 0], [0, 1], [-1, -1]],
				"bias": [0, 0.5, 0]
			}`)

			l, err := Load(path)

			Convey("Then it should load with its declared dimensions", func() {
				So(err, ShouldBeNil)
				So(l.StateDim(), ShouldEqual, 2)
				So(l.ActionDim(), ShouldEqual, 3)
			})
		})

		Convey("When the file is missing", func() {
			_, err := Load(filepath.Join(t.TempDir(), "nope.json"))

			So(errors.Is(err, ErrUnavailable), ShouldBeTrue)
		})

		Convey("When the file is not JSON", func() {
			path := writeArtifact(t, "definitely not json")
			_, err := Load(path)

			So(errors.Is(err, ErrUnavailable), ShouldBeTrue)
		})

		Convey("When the weight rows do not match the action dimension", func() {
			path := writeArtifact(t, `{
				"state_dim": 2,
				"action_dim": 3,
				"weights": [[1, 0]],
				"bias": [0, 0, 0]
			}`)
			_, err := Load(path)

			So(errors.Is(err, ErrUnavailable), ShouldBeTrue)
		})

		Convey("When a weight row does not match the state dimension", func() {
			path := writeArtifact(t, `{
				"state_dim": 2,
				"action_dim": 1,
				"weights": [[1, 0, 3]],
				"bias": [0]
			}`)
			_, err := Load(path)

			So(errors.Is(err, ErrUnavailable), ShouldBeTrue)
		})
	})
}

func TestDecide(t *testing.T) {
	Convey("Given a loaded linear policy", t, func() {
		l, err := New(2, 3,
			[][]float64{{1, 0}, {0, 1}, {-1, -1}},
			[]float64{0, 0, 0})
		So(err, ShouldBeNil)

		Convey("When the first feature dominates", func() {
			action, err := l.Decide([]float64{5, 1})

			So(err, ShouldBeNil)
			So(action, ShouldEqual, 0)
		})

		Convey("When the second feature dominates", func() {
			action, err := l.Decide([]float64{1, 5})

			So(err, ShouldBeNil)
			So(action, ShouldEqual, 1)
		})

		Convey("When both features are strongly negative", func() {
			action, err := l.Decide([]float64{-5, -5})

			So(err, ShouldBeNil)
			So(action, ShouldEqual, 2)
		})

		Convey("When the state has the wrong dimension", func() {
			_, err := l.Decide([]float64{1})

			So(errors.Is(err, ErrUnavailable), ShouldBeTrue)
		})
	})
}
