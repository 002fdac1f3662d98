package model

import (
	"encoding/json"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestKind(t *testing.T) {
	Convey("Given the task kind enum", t, func() {
		Convey("every kind has a distinct tag that parses back", func() {
			seen := map[string]bool{}
			for _, k := range Kinds() {
				tag := k.String()
				So(seen[tag], ShouldBeFalse)
				seen[tag] = true

				parsed, err := ParseKind(tag)
				So(err, ShouldBeNil)
				So(parsed, ShouldEqual, k)
			}
		})

		Convey("unknown tags are rejected", func() {
			_, err := ParseKind("juggling")
			So(err, ShouldNotBeNil)
		})

		Convey("kinds serialize as their tag inside structs", func() {
			raw, err := json.Marshal(TaskResult{Kind: KindRuleSwitch, Tag: "task-0001"})
			So(err, ShouldBeNil)
			So(string(raw), ShouldContainSubstring, `"task_type":"rule_switch"`)

			var back TaskResult
			So(json.Unmarshal(raw, &back), ShouldBeNil)
			So(back.Kind, ShouldEqual, KindRuleSwitch)
		})

		Convey("a bad tag fails to unmarshal", func() {
			var k Kind
			So(json.Unmarshal([]byte(`"juggling"`), &k), ShouldNotBeNil)
		})
	})
}

func TestSymbol(t *testing.T) {
	Convey("Given the response alphabet", t, func() {
		So(SymbolLeft.Valid(), ShouldBeTrue)
		So(SymbolRight.Valid(), ShouldBeTrue)
		So(Symbol("up").Valid(), ShouldBeFalse)
		So(Symbol("").Valid(), ShouldBeFalse)
	})
}

func TestTaskResultAnswered(t *testing.T) {
	Convey("Given task results", t, func() {
		Convey("a response marks the result answered", func() {
			So(TaskResult{Response: "yes"}.Answered(), ShouldBeTrue)
		})

		Convey("a timeout leaves it unanswered", func() {
			So(TaskResult{Timeout: true}.Answered(), ShouldBeFalse)
		})
	})
}
