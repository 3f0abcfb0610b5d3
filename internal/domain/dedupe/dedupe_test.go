package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	dedupe "github.com/okian/cevs/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new InMemoryDeduper", t, func() {
		d := dedupe.NewInMemoryDeduper()
		So(d.Size(), ShouldEqual, 0)

		Convey("When a key is seen for the first time", func() {
			seen := d.SeenAndRecord(ctx, "atlantis")

			Convey("Then it is reported new and recorded", func() {
				So(seen, ShouldBeFalse)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When the same key is seen twice", func() {
			d.SeenAndRecord(ctx, "atlantis")
			seen := d.SeenAndRecord(ctx, "atlantis")

			Convey("Then the second sighting is reported as seen", func() {
				So(seen, ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When a key is unrecorded", func() {
			d.SeenAndRecord(ctx, "atlantis")
			d.Unrecord(ctx, "atlantis")
			d.Unrecord(ctx, "never-seen")

			Convey("Then its next sighting is new again", func() {
				So(d.Size(), ShouldEqual, 0)
				So(d.SeenAndRecord(ctx, "atlantis"), ShouldBeFalse)
			})
		})
	})

	Convey("Given a bounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))

		Convey("When more keys than the bound are recorded", func() {
			for _, k := range []string{"a", "b", "c"} {
				d.SeenAndRecord(ctx, k)
			}
			d.SeenAndRecord(ctx, "a") // a becomes most recent
			d.SeenAndRecord(ctx, "d") // evicts b

			Convey("Then the least recently seen key is forgotten", func() {
				So(d.Size(), ShouldEqual, 3)
				So(d.SeenAndRecord(ctx, "a"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "b"), ShouldBeFalse)
			})
		})
	})

	Convey("Given concurrent callers racing on one key", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(100))

		var wg sync.WaitGroup
		var mu sync.Mutex
		firsts := 0
		for i := 0; i < 64; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if !d.SeenAndRecord(ctx, "shared") {
					mu.Lock()
					firsts++
					mu.Unlock()
				}
				d.SeenAndRecord(ctx, fmt.Sprintf("own-%d", i%10))
			}()
		}
		wg.Wait()

		So(firsts, ShouldEqual, 1)
		So(d.Size(), ShouldEqual, 11)
	})
}
