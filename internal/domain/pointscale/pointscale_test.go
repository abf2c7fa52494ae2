package pointscale_test

import (
	"context"
	"errors"
	"testing"

	"github.com/okian/peloton/internal/domain/model"
	"github.com/okian/peloton/internal/domain/pointscale"
	. "github.com/smartystreets/goconvey/convey"
)

type stubSource struct {
	scales map[int64]model.PointScale
	calls  int
	err    error
}

func (s *stubSource) GetPointScale(_ context.Context, id int64) (model.PointScale, error) {
	s.calls++
	if s.err != nil {
		return model.PointScale{}, s.err
	}
	sc, ok := s.scales[id]
	if !ok {
		return model.PointScale{}, pointscale.ErrScaleNotFound
	}
	return sc, nil
}

func mustScale(id int64, dual bool, values map[int]model.ScaleValue) model.PointScale {
	s, err := model.NewPointScale(id, "test", "enduro", dual, values)
	if err != nil {
		panic(err)
	}
	return s
}

func TestResolver(t *testing.T) {
	Convey("Given a resolver over a single-run and a dual-run scale", t, func() {
		ctx := context.Background()
		single := mustScale(1, false, map[int]model.ScaleValue{1: {Points: 100}, 2: {Points: 80}, 3: {Points: 65}})
		dual := mustScale(2, true, map[int]model.ScaleValue{
			1: {Points: 100, Run1Points: 100, Run2Points: 100},
			2: {Points: 80, Run1Points: 80, Run2Points: 85},
		})
		src := &stubSource{scales: map[int64]model.PointScale{1: single, 2: dual}}
		r := pointscale.NewResolver(src)

		Convey("When resolving a single-run scale", func() {
			p, err := r.Resolve(ctx, 1, 2, pointscale.RunAny)
			So(err, ShouldBeNil)
			So(p, ShouldEqual, 80)

			Convey("Then the run index is ignored", func() {
				p, err := r.Resolve(ctx, 1, 2, pointscale.Run2)
				So(err, ShouldBeNil)
				So(p, ShouldEqual, 80)
			})
		})

		Convey("When resolving each run of a dual-run scale", func() {
			p1, err := r.Resolve(ctx, 2, 2, pointscale.Run1)
			So(err, ShouldBeNil)
			p2, err := r.Resolve(ctx, 2, 2, pointscale.Run2)
			So(err, ShouldBeNil)
			So(p1, ShouldEqual, 80)
			So(p2, ShouldEqual, 85)
		})

		Convey("When the position is past the table", func() {
			p, err := r.Resolve(ctx, 1, 4, pointscale.RunAny)
			So(err, ShouldBeNil)
			So(p, ShouldEqual, 0)
		})

		Convey("When the scale id is unknown", func() {
			p, err := r.Resolve(ctx, 99, 1, pointscale.RunAny)
			So(err, ShouldBeNil)
			So(p, ShouldEqual, 0)
		})

		Convey("When the position is zero or negative", func() {
			_, err := r.Resolve(ctx, 1, 0, pointscale.RunAny)
			So(errors.Is(err, pointscale.ErrInvalidPosition), ShouldBeTrue)
			So(errors.Is(err, model.ErrInvalidInput), ShouldBeTrue)
			_, err = r.Resolve(ctx, 1, -3, pointscale.RunAny)
			So(errors.Is(err, pointscale.ErrInvalidPosition), ShouldBeTrue)
		})

		Convey("When the same scale is resolved repeatedly", func() {
			for i := 1; i <= 3; i++ {
				_, _ = r.Resolve(ctx, 1, i, pointscale.RunAny)
			}
			Convey("Then the source is read once", func() {
				So(src.calls, ShouldEqual, 1)
			})
		})
	})

	Convey("Given a failing source", t, func() {
		boom := errors.New("db down")
		r := pointscale.NewResolver(&stubSource{err: boom})

		Convey("Then the storage error propagates", func() {
			_, err := r.Resolve(context.Background(), 1, 1, pointscale.RunAny)
			So(errors.Is(err, boom), ShouldBeTrue)
		})
	})

	Convey("Given preloaded scales and no source", t, func() {
		r := pointscale.NewResolver(nil, pointscale.WithScales(mustScale(5, false, map[int]model.ScaleValue{1: {Points: 10}})))

		p, err := r.Resolve(context.Background(), 5, 1, pointscale.RunAny)
		So(err, ShouldBeNil)
		So(p, ShouldEqual, 10)

		p, err = r.Resolve(context.Background(), 6, 1, pointscale.RunAny)
		So(err, ShouldBeNil)
		So(p, ShouldEqual, 0)
	})
}
