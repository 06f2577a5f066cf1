package timing

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/quantsim/chrono/hooking"
	"github.com/quantsim/chrono/idgen"
)

type firedAt struct {
	name    string
	tsEvent uint64
	tsInit  uint64
}

func strip(handlers []TimeEventHandler) []firedAt {
	out := make([]firedAt, 0, len(handlers))
	for _, h := range handlers {
		out = append(out, firedAt{h.Event.Name, h.Event.TsEvent, h.Event.TsInit})
	}
	return out
}

func eventTimes(handlers []TimeEventHandler) []uint64 {
	out := make([]uint64, 0, len(handlers))
	for _, h := range handlers {
		out = append(out, h.Event.TsEvent)
	}
	return out
}

var _ = Describe("SimulatedClock", func() {
	var (
		mockCtrl *gomock.Controller
		callback *MockCallback
		clock    *SimulatedClock
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		callback = NewMockCallback(mockCtrl)
		clock = MakeSimulatedClockBuilder().
			WithIDGenerator(idgen.NewSequential()).
			Build()
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	Context("reading time", func() {
		It("should start at the builder's start time", func() {
			clock = MakeSimulatedClockBuilder().WithStartTime(42).Build()

			Expect(clock.TimestampNs()).To(Equal(uint64(42)))
		})

		It("should convert units", func() {
			clock.SetTime(1_500_250_750_000)

			Expect(clock.Timestamp()).To(BeNumerically("~", 1500.25075, 1e-9))
			Expect(clock.TimestampMs()).To(Equal(uint64(1_500_250)))
			Expect(clock.TimestampUs()).To(Equal(uint64(1_500_250_750)))
			Expect(clock.TimestampNs()).To(Equal(uint64(1_500_250_750_000)))
		})

		It("should not evaluate timers on set time", func() {
			Expect(clock.SetTimeAlert("a", 10, callback)).To(Succeed())

			clock.SetTime(5)

			Expect(clock.TimerCount()).To(Equal(1))
		})
	})

	Context("registering", func() {
		It("should reject a missing callback without a default", func() {
			err := clock.SetTimeAlert("a", 10, nil)

			Expect(errors.Is(err, ErrNoCallback)).To(BeTrue())
			Expect(errors.Is(err, ErrInvalidArgument)).To(BeTrue())
			Expect(clock.TimerCount()).To(Equal(0))
		})

		It("should fall back to the default handler", func() {
			clock.RegisterDefaultHandler(callback)

			Expect(clock.SetTimeAlert("a", 10, nil)).To(Succeed())

			handlers := clock.AdvanceTime(10, true)
			Expect(handlers).To(HaveLen(1))
			Expect(handlers[0].Callback).To(BeIdenticalTo(callback))
		})

		It("should overwrite the default handler", func() {
			other := NewMockCallback(mockCtrl)
			clock.RegisterDefaultHandler(callback)
			clock.RegisterDefaultHandler(other)

			Expect(clock.SetTimeAlert("a", 10, nil)).To(Succeed())

			handlers := clock.AdvanceTime(10, true)
			Expect(handlers[0].Callback).To(BeIdenticalTo(other))
		})

		It("should reject an empty name", func() {
			err := clock.SetTimeAlert("", 10, callback)

			Expect(errors.Is(err, ErrInvalidArgument)).To(BeTrue())
		})

		It("should reject an alert that is not in the future", func() {
			clock.SetTime(100)

			err := clock.SetTimeAlert("a", 100, callback)

			Expect(errors.Is(err, ErrInvalidArgument)).To(BeTrue())
		})

		It("should reject a zero interval at registration", func() {
			err := clock.SetTimer("t", 0, 0, 0, callback)

			Expect(errors.Is(err, ErrInvalidArgument)).To(BeTrue())
			Expect(clock.TimerCount()).To(Equal(0))
		})

		It("should reject a stop time before the start time", func() {
			err := clock.SetTimer("t", 10, 100, 50, callback)

			Expect(errors.Is(err, ErrInvalidArgument)).To(BeTrue())
		})

		It("should reject a timer with no firing left", func() {
			clock.SetTime(7_000)

			err := clock.SetTimer("t", 1_000, 0, 5_000, callback)

			Expect(errors.Is(err, ErrInvalidArgument)).To(BeTrue())
		})

		It("should align a retroactive timer to its own grid", func() {
			clock.SetTime(2_500)

			Expect(clock.SetTimer("t", 1_000, 0, 0, callback)).To(Succeed())

			next, err := clock.NextTimeNs("t")
			Expect(err).NotTo(HaveOccurred())
			Expect(next).To(Equal(uint64(3_000)))

			handlers := clock.AdvanceTime(5_000, true)
			Expect(eventTimes(handlers)).To(Equal([]uint64{3_000, 4_000, 5_000}))
		})

		It("should replace a timer with the same name", func() {
			Expect(clock.SetTimer("x", 100, 0, 0, callback)).To(Succeed())
			Expect(clock.SetTimeAlert("x", 250, callback)).To(Succeed())

			Expect(clock.TimerCount()).To(Equal(1))

			info, err := clock.Timer("x")
			Expect(err).NotTo(HaveOccurred())
			Expect(info.Kind).To(Equal(Alert))

			handlers := clock.AdvanceTime(1_000, true)
			Expect(strip(handlers)).To(Equal([]firedAt{{"x", 250, 1_000}}))
		})

		It("should keep the old timer when a replacement is rejected", func() {
			Expect(clock.SetTimer("x", 100, 0, 0, callback)).To(Succeed())

			Expect(clock.SetTimer("x", 0, 0, 0, callback)).NotTo(Succeed())

			next, err := clock.NextTimeNs("x")
			Expect(err).NotTo(HaveOccurred())
			Expect(next).To(Equal(uint64(100)))
		})
	})

	Context("querying", func() {
		It("should report not found for unknown timers", func() {
			_, err := clock.NextTimeNs("missing")

			Expect(errors.Is(err, ErrTimerNotFound)).To(BeTrue())

			_, err = clock.Timer("missing")
			Expect(errors.Is(err, ErrTimerNotFound)).To(BeTrue())
		})

		It("should list timers by name", func() {
			Expect(clock.SetTimeAlert("b", 10, callback)).To(Succeed())
			Expect(clock.SetTimer("a", 5, 0, 0, callback)).To(Succeed())

			Expect(clock.TimerNames()).To(Equal([]string{"a", "b"}))
			Expect(clock.TimerCount()).To(Equal(2))

			infos := clock.Timers()
			Expect(infos).To(HaveLen(2))
			Expect(infos[0]).To(Equal(TimerInfo{
				Name: "a", Kind: Interval, IntervalNs: 5, NextTimeNs: 5,
			}))
			Expect(infos[1].NextTimeNs).To(Equal(uint64(10)))
		})
	})

	Context("canceling", func() {
		It("should ignore unknown names", func() {
			Expect(clock.SetTimeAlert("a", 10, callback)).To(Succeed())

			Expect(func() { clock.CancelTimer("unknown") }).NotTo(Panic())
			Expect(clock.TimerCount()).To(Equal(1))
		})

		It("should remove one timer", func() {
			Expect(clock.SetTimeAlert("a", 10, callback)).To(Succeed())
			Expect(clock.SetTimeAlert("b", 20, callback)).To(Succeed())

			clock.CancelTimer("a")

			Expect(clock.TimerNames()).To(Equal([]string{"b"}))
			Expect(strip(clock.AdvanceTime(30, true))).
				To(Equal([]firedAt{{"b", 20, 30}}))
		})

		It("should remove all timers", func() {
			Expect(clock.SetTimeAlert("a", 10, callback)).To(Succeed())
			Expect(clock.SetTimer("b", 5, 0, 0, callback)).To(Succeed())

			clock.CancelTimers()

			Expect(clock.TimerCount()).To(Equal(0))
			Expect(clock.AdvanceTime(100, true)).To(BeEmpty())
		})
	})

	Context("advancing", func() {
		It("should fire an alert exactly once", func() {
			Expect(clock.SetTimeAlert("alert", 1_000, callback)).To(Succeed())

			handlers := clock.AdvanceTime(1_000, true)

			Expect(strip(handlers)).To(Equal([]firedAt{{"alert", 1_000, 1_000}}))
			Expect(clock.TimerCount()).To(Equal(0))
			_, err := clock.NextTimeNs("alert")
			Expect(errors.Is(err, ErrTimerNotFound)).To(BeTrue())
			Expect(clock.AdvanceTime(5_000, true)).To(BeEmpty())
		})

		It("should not fire an alert before its time", func() {
			Expect(clock.SetTimeAlert("alert", 1_000, callback)).To(Succeed())

			Expect(clock.AdvanceTime(999, true)).To(BeEmpty())
			Expect(clock.TimerCount()).To(Equal(1))
		})

		It("should fire a bounded interval timer several times in one jump", func() {
			Expect(clock.SetTimer("t", 1_000, 0, 5_000, callback)).To(Succeed())

			handlers := clock.AdvanceTime(10_000, true)

			Expect(eventTimes(handlers)).To(Equal(
				[]uint64{1_000, 2_000, 3_000, 4_000, 5_000}))
			for _, h := range handlers {
				Expect(h.Event.Name).To(Equal("t"))
				Expect(h.Event.TsInit).To(Equal(uint64(10_000)))
				Expect(h.Callback).To(BeIdenticalTo(callback))
			}
			Expect(clock.TimerCount()).To(Equal(0))
		})

		It("should keep an unbounded interval timer", func() {
			Expect(clock.SetTimer("t", 300, 0, 0, callback)).To(Succeed())

			Expect(eventTimes(clock.AdvanceTime(1_000, true))).
				To(Equal([]uint64{300, 600, 900}))

			next, err := clock.NextTimeNs("t")
			Expect(err).NotTo(HaveOccurred())
			Expect(next).To(Equal(uint64(1_200)))

			Expect(eventTimes(clock.AdvanceTime(1_200, true))).
				To(Equal([]uint64{1_200}))
		})

		It("should merge timers in time order and break ties by registration", func() {
			Expect(clock.SetTimer("zeta", 100, 0, 0, callback)).To(Succeed())
			Expect(clock.SetTimer("alpha", 150, 0, 0, callback)).To(Succeed())
			Expect(clock.SetTimeAlert("mid", 300, callback)).To(Succeed())

			handlers := clock.AdvanceTime(300, true)

			Expect(strip(handlers)).To(Equal([]firedAt{
				{"zeta", 100, 300},
				{"alpha", 150, 300},
				{"zeta", 200, 300},
				{"zeta", 300, 300},
				{"alpha", 300, 300},
				{"mid", 300, 300},
			}))
		})

		It("should order re-registered timers after existing ones on ties", func() {
			Expect(clock.SetTimeAlert("first", 100, callback)).To(Succeed())
			Expect(clock.SetTimeAlert("second", 100, callback)).To(Succeed())
			Expect(clock.SetTimeAlert("first", 100, callback)).To(Succeed())

			names := []string{}
			for _, h := range clock.AdvanceTime(100, true) {
				names = append(names, h.Event.Name)
			}
			Expect(names).To(Equal([]string{"second", "first"}))
		})

		It("should stamp fresh event ids", func() {
			Expect(clock.SetTimer("t", 10, 0, 0, callback)).To(Succeed())

			handlers := clock.AdvanceTime(30, true)

			ids := []string{}
			for _, h := range handlers {
				ids = append(ids, h.Event.EventID)
			}
			Expect(ids).To(Equal([]string{"1", "2", "3"}))
		})

		It("should return a non-decreasing sequence", func() {
			for i, interval := range []uint64{7, 11, 13, 17, 19} {
				name := string(rune('a' + i))
				Expect(clock.SetTimer(name, interval, 0, 0, callback)).To(Succeed())
			}

			handlers := clock.AdvanceTime(500, true)

			Expect(handlers).NotTo(BeEmpty())
			for i := 1; i < len(handlers); i++ {
				Expect(handlers[i].Event.TsEvent).To(
					BeNumerically(">=", handlers[i-1].Event.TsEvent))
			}
		})

		It("should commit the target time", func() {
			clock.AdvanceTime(1_234, true)

			Expect(clock.TimestampNs()).To(Equal(uint64(1_234)))
		})

		It("should panic when advancing backward", func() {
			clock.SetTime(1_000)

			Expect(func() { clock.AdvanceTime(999, true) }).To(Panic())
			Expect(clock.TimestampNs()).To(Equal(uint64(1_000)))
		})

		It("should accept advancing to the current time", func() {
			clock.SetTime(1_000)

			Expect(clock.AdvanceTime(1_000, true)).To(BeEmpty())
		})

		It("should skip stale firings after the clock was set forward", func() {
			Expect(clock.SetTimer("t", 100, 0, 0, callback)).To(Succeed())
			Expect(clock.SetTimeAlert("a", 150, callback)).To(Succeed())

			clock.SetTime(250)

			Expect(strip(clock.AdvanceTime(400, true))).To(Equal([]firedAt{
				{"t", 300, 400},
				{"t", 400, 400},
			}))
			Expect(clock.TimerNames()).To(Equal([]string{"t"}))
		})
	})

	Context("looking ahead", func() {
		It("should report nothing without timers", func() {
			_, ok := clock.NextFiringNs()

			Expect(ok).To(BeFalse())
		})

		It("should report the earliest firing of all timers", func() {
			Expect(clock.SetTimeAlert("late", 7000, callback)).To(Succeed())
			Expect(clock.SetTimer("tick", 3000, 0, 0, callback)).To(Succeed())

			next, ok := clock.NextFiringNs()
			Expect(ok).To(BeTrue())
			Expect(next).To(Equal(uint64(3000)))

			clock.AdvanceTime(3000, true)

			next, ok = clock.NextFiringNs()
			Expect(ok).To(BeTrue())
			Expect(next).To(Equal(uint64(6000)))
		})

		It("should follow the grid after the clock was set forward", func() {
			Expect(clock.SetTimer("tick", 1000, 0, 0, callback)).To(Succeed())
			clock.SetTime(4500)

			next, ok := clock.NextFiringNs()
			Expect(ok).To(BeTrue())
			Expect(next).To(Equal(uint64(5000)))
		})
	})

	Context("peeking", func() {
		It("should return the same events without mutating state", func() {
			Expect(clock.SetTimer("t", 1_000, 0, 5_000, callback)).To(Succeed())
			Expect(clock.SetTimeAlert("a", 2_500, callback)).To(Succeed())

			first := clock.AdvanceTime(4_000, false)
			second := clock.AdvanceTime(4_000, false)

			Expect(strip(first)).To(Equal(strip(second)))
			Expect(eventTimes(first)).To(Equal(
				[]uint64{1_000, 2_000, 2_500, 3_000, 4_000}))
			Expect(clock.TimestampNs()).To(Equal(uint64(0)))
			Expect(clock.TimerCount()).To(Equal(2))

			next, err := clock.NextTimeNs("t")
			Expect(err).NotTo(HaveOccurred())
			Expect(next).To(Equal(uint64(1_000)))
		})

		It("should match what a committed advance returns", func() {
			Expect(clock.SetTimer("t", 250, 0, 0, callback)).To(Succeed())

			peeked := clock.AdvanceTime(1_000, false)
			committed := clock.AdvanceTime(1_000, true)

			Expect(strip(peeked)).To(Equal(strip(committed)))
		})
	})

	Context("replaying", func() {
		run := func() []firedAt {
			c := MakeSimulatedClockBuilder().Build()
			Expect(c.SetTimer("bars", 60, 0, 600, callback)).To(Succeed())
			Expect(c.SetTimer("heartbeat", 45, 15, 0, callback)).To(Succeed())
			Expect(c.SetTimeAlert("close", 330, callback)).To(Succeed())

			out := strip(c.AdvanceTime(200, true))
			out = append(out, strip(c.AdvanceTime(200, true))...)
			out = append(out, strip(c.AdvanceTime(700, true))...)
			return out
		}

		It("should produce identical sequences on fresh clocks", func() {
			Expect(run()).To(Equal(run()))
		})
	})

	Context("hooks", func() {
		It("should report registrations, cancellations and advances", func() {
			hook := NewMockHook(mockCtrl)
			clock.AcceptHook(hook)

			var positions []*hooking.HookPos
			var advanced hooking.HookCtx
			hook.EXPECT().Func(gomock.Any()).Do(func(ctx hooking.HookCtx) {
				positions = append(positions, ctx.Pos)
				if ctx.Pos == HookPosTimeAdvanced {
					advanced = ctx
				}
			}).Times(4)

			Expect(clock.SetTimeAlert("a", 10, callback)).To(Succeed())
			Expect(clock.SetTimeAlert("b", 20, callback)).To(Succeed())
			clock.CancelTimer("b")
			clock.CancelTimer("b")
			clock.AdvanceTime(10, true)

			Expect(positions).To(Equal([]*hooking.HookPos{
				HookPosTimerSet, HookPosTimerSet,
				HookPosTimerCanceled, HookPosTimeAdvanced,
			}))
			Expect(advanced.Item).To(HaveLen(1))
			Expect(advanced.Detail).To(Equal(AdvanceDetail{
				FromNs: 0, ToNs: 10, Committed: true,
			}))
		})
	})
})

var _ = Describe("TimeEventHandler", func() {
	It("should dispatch to its callback", func() {
		mockCtrl := gomock.NewController(GinkgoT())
		defer mockCtrl.Finish()

		callback := NewMockCallback(mockCtrl)
		evt := TimeEvent{Name: "a", EventID: "1", TsEvent: 5, TsInit: 6}
		callback.EXPECT().Handle(evt).Return(nil)

		Expect(TimeEventHandler{Event: evt, Callback: callback}.Dispatch()).
			To(Succeed())
	})

	It("should fail without a callback", func() {
		err := TimeEventHandler{Event: TimeEvent{Name: "a"}}.Dispatch()

		Expect(errors.Is(err, ErrNoCallback)).To(BeTrue())
	})

	It("should format events", func() {
		evt := TimeEvent{Name: "a", EventID: "1", TsEvent: 5, TsInit: 6}

		Expect(evt.String()).To(Equal(
			"TimeEvent(name=a, event_id=1, ts_event=5, ts_init=6)"))
	})

	It("should adapt functions", func() {
		called := false
		cb := CallbackFunc(func(TimeEvent) error {
			called = true
			return nil
		})

		Expect(cb.Handle(TimeEvent{})).To(Succeed())
		Expect(called).To(BeTrue())
	})
})
