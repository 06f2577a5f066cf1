package lifecycle

import (
	"bytes"
	"errors"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/quantsim/chrono/hooking"
	"github.com/quantsim/chrono/logging"
	"github.com/quantsim/chrono/timing"
)

var _ = Describe("Machine", func() {
	var (
		mockCtrl *gomock.Controller
		clock    *timing.SimulatedClock
		machine  *Machine
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		clock = timing.NewSimulatedClock()
		machine = NewMachine("Strategy-001", clock)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should start pre-initialized", func() {
		Expect(machine.State()).To(Equal(PreInitialized))
		Expect(machine.Name()).To(Equal("Strategy-001"))
	})

	It("should walk a full lifecycle", func() {
		steps := []struct {
			trigger ComponentTrigger
			want    ComponentState
		}{
			{Initialize, Ready},
			{Start, Starting},
			{StartCompleted, Running},
			{Stop, Stopping},
			{StopCompleted, Stopped},
			{Resume, Resuming},
			{ResumeCompleted, Running},
			{Degrade, Degrading},
			{DegradeCompleted, Degraded},
			{Stop, Stopping},
			{StopCompleted, Stopped},
			{Dispose, Disposing},
			{DisposeCompleted, Disposed},
		}

		for _, step := range steps {
			got, err := machine.Trigger(step.trigger)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(step.want))
			Expect(machine.State()).To(Equal(step.want))
		}
	})

	It("should leave the state unchanged on every illegal trigger", func() {
		for _, s := range States() {
			for _, t := range Triggers() {
				if _, legal := expectedGraph[s][t]; legal {
					continue
				}

				m := NewMachine("m", nil)
				m.state = s

				got, err := m.Trigger(t)
				Expect(errors.Is(err, ErrInvalidTransition)).To(BeTrue())
				Expect(got).To(Equal(s))
				Expect(m.State()).To(Equal(s))
			}
		}
	})

	It("should fault from any live state and stay faulted", func() {
		for _, s := range States() {
			if s.IsTerminal() || s == Faulting {
				continue
			}

			m := NewMachine("m", nil)
			m.state = s

			Expect(m.Trigger(Fault)).To(Equal(Faulting))
			Expect(m.Trigger(FaultCompleted)).To(Equal(Faulted))

			for _, t := range Triggers() {
				_, err := m.Trigger(t)
				Expect(err).To(HaveOccurred())
				Expect(m.State()).To(Equal(Faulted))
			}
		}
	})

	It("should apply concurrent triggers atomically", func() {
		_, err := machine.Trigger(Initialize)
		Expect(err).NotTo(HaveOccurred())

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			successes int
		)
		for i := 0; i < 32; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := machine.Trigger(Start); err == nil {
					mu.Lock()
					successes++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		Expect(successes).To(Equal(1))
		Expect(machine.State()).To(Equal(Starting))
	})

	It("should report transitions to hooks with the clock time", func() {
		hook := NewMockHook(mockCtrl)
		machine.AcceptHook(hook)
		clock.SetTime(5_000)

		hook.EXPECT().Func(hooking.HookCtx{
			Domain: machine,
			Pos:    HookPosStateChanged,
			Now:    5_000,
			Item:   Transition{From: PreInitialized, Trigger: Initialize, To: Ready},
			Detail: "Strategy-001",
		})

		_, err := machine.Trigger(Initialize)
		Expect(err).NotTo(HaveOccurred())

		_, err = machine.Trigger(StartCompleted)
		Expect(err).To(HaveOccurred())
	})

	It("should log transitions", func() {
		buf := &bytes.Buffer{}
		cfg := logging.DefaultConfig()
		cfg.Stdout = buf
		logger, err := logging.New(cfg)
		Expect(err).NotTo(HaveOccurred())

		machine.AcceptHook(NewTransitionLogger(logger))
		_, err = machine.Trigger(Initialize)
		Expect(err).NotTo(HaveOccurred())

		Expect(buf.String()).To(ContainSubstring("READY"))
		Expect(buf.String()).To(ContainSubstring("Strategy-001"))
	})
})

var _ = Describe("Component", func() {
	var (
		mockCtrl  *gomock.Controller
		actions   *MockActions
		component *Component
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		actions = NewMockActions(mockCtrl)
		component = NewComponent("Actor", actions, nil)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should run actions between intent and completion", func() {
		actions.EXPECT().OnStart().DoAndReturn(func() error {
			Expect(component.State()).To(Equal(Starting))
			return nil
		})

		Expect(component.Initialize()).To(Succeed())
		Expect(component.Start()).To(Succeed())
		Expect(component.State()).To(Equal(Running))
	})

	It("should stay in progress when an action fails", func() {
		boom := errors.New("boom")
		actions.EXPECT().OnStart().Return(boom)

		Expect(component.Initialize()).To(Succeed())
		err := component.Start()

		Expect(errors.Is(err, boom)).To(BeTrue())
		Expect(component.State()).To(Equal(Starting))
	})

	It("should not run actions for illegal operations", func() {
		err := component.Stop()

		Expect(errors.Is(err, ErrInvalidTransition)).To(BeTrue())
		Expect(component.State()).To(Equal(PreInitialized))
	})

	It("should perform named actions", func() {
		actions.EXPECT().OnStart().Return(nil)
		actions.EXPECT().OnStop().Return(nil)
		actions.EXPECT().OnResume().Return(nil)
		actions.EXPECT().OnDegrade().Return(nil)
		actions.EXPECT().OnFault().Return(nil)

		for _, name := range []string{
			"initialize", "start", "stop", "resume", "degrade", "fault",
		} {
			action, err := ParseAction(name)
			Expect(err).NotTo(HaveOccurred())
			Expect(component.Perform(action)).To(Succeed(), name)
		}

		Expect(component.State()).To(Equal(Faulted))
	})

	It("should reset and dispose", func() {
		actions.EXPECT().OnReset().Return(nil)
		actions.EXPECT().OnDispose().Return(nil)

		Expect(component.Initialize()).To(Succeed())
		Expect(component.Reset()).To(Succeed())
		Expect(component.State()).To(Equal(Ready))
		Expect(component.Dispose()).To(Succeed())
		Expect(component.State()).To(Equal(Disposed))
	})

	It("should reject unknown actions", func() {
		_, err := ParseAction("explode")
		Expect(errors.Is(err, ErrInvalidArgument)).To(BeTrue())

		err = component.Perform(Action("explode"))
		Expect(errors.Is(err, ErrInvalidArgument)).To(BeTrue())
	})

	It("should default to no-op actions", func() {
		c := NewComponent("Plain", nil, nil)

		Expect(c.Initialize()).To(Succeed())
		Expect(c.Start()).To(Succeed())
		Expect(c.Name()).To(Equal("Plain"))
		Expect(c.Machine().State()).To(Equal(Running))
	})
})
