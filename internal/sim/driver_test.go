package sim_test

import (
	"context"
	"errors"
	"math"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/steersim/internal/control"
	"github.com/san-kum/steersim/internal/dynamo"
	"github.com/san-kum/steersim/internal/sim"
)

type recorder struct {
	samples []dynamo.Sample
}

func (r *recorder) OnStep(s dynamo.Sample) { r.samples = append(r.samples, s) }

type sampleCounter struct{ n float64 }

func (c *sampleCounter) Name() string          { return "samples" }
func (c *sampleCounter) Observe(dynamo.Sample) { c.n++ }
func (c *sampleCounter) Value() float64        { return c.n }
func (c *sampleCounter) Reset()                { c.n = 0 }

func scenario(s dynamo.Scenario) dynamo.Params {
	p := dynamo.DefaultParams()
	p.Scenario = s
	return p
}

func mustRun(p dynamo.Params) *dynamo.Series {
	series, err := sim.Run(context.Background(), p, nil)
	Expect(err).NotTo(HaveOccurred())
	return series
}

var _ = Describe("Driver", func() {
	Describe("output shape", func() {
		DescribeTable("records steps+1 samples from t=0",
			func(s dynamo.Scenario) {
				p := scenario(s)
				series := mustRun(p)

				Expect(series.Len()).To(Equal(p.Steps() + 1))
				Expect(series.Len()).To(Equal(5001))
				Expect(series.Time[0]).To(BeZero())
				Expect(series.Time[series.Len()-1]).To(BeNumerically("~", p.Duration, p.Dt))
				Expect(series.IsValid()).To(BeTrue())
			},
			Entry("initial offset", dynamo.ScenarioInitialOffset),
			Entry("disturbance", dynamo.ScenarioDisturbance),
			Entry("tracking", dynamo.ScenarioTracking),
		)

		It("includes the end time when it is a multiple of dt up to rounding", func() {
			p := scenario(dynamo.ScenarioInitialOffset)
			p.Duration, p.Dt = 0.3, 0.1

			series := mustRun(p)
			Expect(series.Len()).To(Equal(4))
			Expect(series.Time[3]).To(BeNumerically("~", 0.3, 1e-12))
		})
	})

	It("is deterministic", func() {
		for _, s := range []dynamo.Scenario{dynamo.ScenarioInitialOffset, dynamo.ScenarioDisturbance, dynamo.ScenarioTracking} {
			a := mustRun(scenario(s))
			b := mustRun(scenario(s))
			Expect(a).To(Equal(b), "scenario %s", s)
		}
	})

	Describe("initial offset scenario", func() {
		It("holds a zero reference and decays the deflection", func() {
			p := scenario(dynamo.ScenarioInitialOffset)
			series := mustRun(p)

			for _, r := range series.Reference {
				Expect(r).To(BeZero())
			}
			last := series.Deflection[series.Len()-1]
			Expect(math.Abs(last)).To(BeNumerically("<", p.InitialDeflection))
			Expect(math.Abs(series.Deflection[5000])).To(BeNumerically("<", math.Abs(series.Deflection[1000])))
		})
	})

	Describe("disturbance scenario", func() {
		It("stays at rest until the disturbance", func() {
			series := mustRun(scenario(dynamo.ScenarioDisturbance))
			for i := 0; i < 2000; i++ {
				Expect(series.Deflection[i]).To(BeZero(), "step %d", i)
			}
		})

		It("shows a single jump of the disturbance size at t=2.0", func() {
			p := scenario(dynamo.ScenarioDisturbance)
			series := mustRun(p)

			jump := series.Deflection[2000] - series.Deflection[1999]
			Expect(jump).To(BeNumerically("~", p.Disturbance, 1e-3))
			Expect(series.Time[2000]).To(BeNumerically("~", 2.0, 1e-9))

			for i := 1; i < series.Len(); i++ {
				if i == 2000 {
					continue
				}
				diff := math.Abs(series.Deflection[i] - series.Deflection[i-1])
				Expect(diff).To(BeNumerically("<", jump/10), "step %d", i)
			}
		})
	})

	Describe("tracking scenario", func() {
		It("steps the reference at t=2.0", func() {
			p := scenario(dynamo.ScenarioTracking)
			series := mustRun(p)

			for i, r := range series.Reference {
				if i < 2000 {
					Expect(r).To(BeZero(), "step %d", i)
				} else {
					Expect(r).To(Equal(dynamo.Deg2Rad(5.0)), "step %d", i)
				}
			}
		})
	})

	Describe("parameter validation", func() {
		DescribeTable("fails before stepping",
			func(mutate func(*dynamo.Params), target error) {
				p := scenario(dynamo.ScenarioInitialOffset)
				mutate(&p)

				calls := 0
				series, err := sim.Run(context.Background(), p, func(float64) { calls++ })
				Expect(errors.Is(err, target)).To(BeTrue(), "got %v", err)
				Expect(series).To(BeNil())
				Expect(calls).To(BeZero())
			},
			Entry("zero dt", func(p *dynamo.Params) { p.Dt = 0 }, dynamo.ErrParameterBounds),
			Entry("negative t_end", func(p *dynamo.Params) { p.Duration = -1 }, dynamo.ErrParameterBounds),
			Entry("zero tau_h", func(p *dynamo.Params) { p.Physical.TauH = 0 }, dynamo.ErrParameterBounds),
			Entry("zero J", func(p *dynamo.Params) { p.Physical.J = 0 }, dynamo.ErrParameterBounds),
			Entry("step count overflowing int", func(p *dynamo.Params) { p.Duration, p.Dt = 1e300, 1e-10 }, dynamo.ErrParameterBounds),
			Entry("unknown scenario", func(p *dynamo.Params) { p.Scenario = 7 }, dynamo.ErrUnknownScenario),
		)
	})

	Describe("progress reporting", func() {
		It("reports a monotonic percentage ending at 100", func() {
			p := scenario(dynamo.ScenarioTracking)
			p.Duration = 1.0

			var seen []float64
			_, err := sim.Run(context.Background(), p, func(pct float64) { seen = append(seen, pct) })
			Expect(err).NotTo(HaveOccurred())

			Expect(seen).To(HaveLen(p.Steps() + 1))
			for i := 1; i < len(seen); i++ {
				Expect(seen[i]).To(BeNumerically(">", seen[i-1]))
			}
			Expect(seen[len(seen)-1]).To(BeNumerically("~", 100, 1e-9))
		})
	})

	Describe("cancellation", func() {
		It("returns the partial result with the context error", func() {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			d := sim.New()
			res, err := d.Run(ctx, scenario(dynamo.ScenarioInitialOffset), func(pct float64) {
				if pct >= 50 {
					cancel()
				}
			})
			Expect(err).To(MatchError(context.Canceled))
			Expect(res).NotTo(BeNil())
			Expect(res.Series.Len()).To(BeNumerically(">", 0))
			Expect(res.Series.Len()).To(BeNumerically("<", 5001))
			Expect(res.StepsTaken).To(Equal(res.Series.Len()))
		})
	})

	Describe("observers and metrics", func() {
		It("sees every sample without changing the trajectory", func() {
			p := scenario(dynamo.ScenarioDisturbance)
			rec := &recorder{}
			counter := &sampleCounter{}

			d := sim.New()
			d.AddObserver(rec)
			d.AddMetric(counter)

			res, err := d.Run(context.Background(), p, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.samples).To(HaveLen(5001))
			Expect(res.Metrics).To(HaveKeyWithValue("samples", 5001.0))
			Expect(res.Series).To(Equal(mustRun(p)))

			for i, s := range rec.samples {
				Expect(s.Step).To(Equal(i))
				Expect(s.Deflection).To(Equal(res.Series.Deflection[i]))
				Expect(math.Abs(s.Voltage)).To(BeNumerically("<=", p.OutputLimit))
			}
		})

		It("resets metrics between runs", func() {
			p := scenario(dynamo.ScenarioInitialOffset)
			p.Duration = 0.5
			counter := &sampleCounter{}
			d := sim.New()
			d.AddMetric(counter)

			for i := 0; i < 2; i++ {
				res, err := d.Run(context.Background(), p, nil)
				Expect(err).NotTo(HaveOccurred())
				Expect(res.Metrics["samples"]).To(Equal(501.0))
			}
		})
	})

	Describe("actuator limits", func() {
		It("keeps the valve within its travel under aggressive gains", func() {
			p := scenario(dynamo.ScenarioInitialOffset)
			p.Gains = dynamo.Gains{Kp: 1e4, Ki: 100, Kd: 50}
			p.OutputLimit = 1e6

			rec := &recorder{}
			d := sim.New()
			d.AddObserver(rec)
			res, err := d.Run(context.Background(), p, nil)
			Expect(err).NotTo(HaveOccurred())

			for _, theta := range res.Series.ValveAngle {
				Expect(math.Abs(theta)).To(BeNumerically("<=", p.Physical.SpoolMax))
			}
			clamped := 0
			for _, s := range rec.samples {
				if s.Clamped {
					clamped++
				}
			}
			Expect(res.Clamps).To(Equal(clamped))
		})
	})

	Describe("non-finite state", func() {
		unstable := func() dynamo.Params {
			p := scenario(dynamo.ScenarioInitialOffset)
			p.Gains.Kp = math.Inf(1)
			p.OutputLimit = 0
			p.Duration = 0.1
			return p
		}

		It("aborts with a simulation error when validation is enabled", func() {
			p := unstable()
			p.ValidateState = true

			res, err := sim.New().Run(context.Background(), p, nil)
			Expect(errors.Is(err, dynamo.ErrUnstable)).To(BeTrue())

			var simErr *dynamo.SimulationError
			Expect(errors.As(err, &simErr)).To(BeTrue())
			Expect(res.Series.Len()).To(Equal(simErr.Step))
		})

		It("runs to completion when validation is disabled", func() {
			series, err := sim.Run(context.Background(), unstable(), nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(series.Len()).To(Equal(101))
			Expect(series.IsValid()).To(BeFalse())
		})
	})

	Describe("shared fuzzy engine", func() {
		It("serves concurrent runs without cross-talk", func() {
			engine := control.DefaultFuzzyEngine()
			want := mustRun(scenario(dynamo.ScenarioDisturbance))

			results := make([]*dynamo.Series, 4)
			var wg sync.WaitGroup
			for i := range results {
				wg.Add(1)
				go func(idx int) {
					defer wg.Done()
					defer GinkgoRecover()
					res, err := sim.New(sim.WithEngine(engine)).Run(context.Background(), scenario(dynamo.ScenarioDisturbance), nil)
					Expect(err).NotTo(HaveOccurred())
					results[idx] = res.Series
				}(i)
			}
			wg.Wait()

			for _, got := range results {
				Expect(got).To(Equal(want))
			}
		})

		It("counts fuzzy misses per run", func() {
			engine := control.DefaultFuzzyEngine()
			d := sim.New(sim.WithEngine(engine))

			res, err := d.Run(context.Background(), scenario(dynamo.ScenarioInitialOffset), nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(int64(res.FuzzyMisses)).To(Equal(engine.Misses()))

			again, err := d.Run(context.Background(), scenario(dynamo.ScenarioInitialOffset), nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(again.FuzzyMisses).To(Equal(res.FuzzyMisses))
			Expect(engine.Misses()).To(Equal(2 * int64(res.FuzzyMisses)))
		})
	})

	Describe("Stepper", func() {
		It("reproduces Run one step at a time", func() {
			p := scenario(dynamo.ScenarioDisturbance)
			want := mustRun(p)

			st, err := sim.NewStepper(p, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(st.Samples()).To(Equal(want.Len()))

			got := dynamo.NewSeries(st.Samples())
			for !st.Done() {
				s := st.Step()
				got.Append(s.Time, s.Deflection, s.ValveAngle, s.Reference)
			}
			Expect(got).To(Equal(want))
			Expect(st.Index()).To(Equal(st.Samples()))
		})

		It("accepts gain changes between steps", func() {
			p := scenario(dynamo.ScenarioInitialOffset)
			p.Duration = 0.5
			baseline := mustRun(p)

			st, err := sim.NewStepper(p, nil)
			Expect(err).NotTo(HaveOccurred())
			var last dynamo.Sample
			for !st.Done() {
				if st.Index() == 100 {
					Expect(st.PID().SetParam("Kp", 5)).To(Succeed())
				}
				last = st.Step()
			}
			Expect(st.PID().GetParams()["Kp"]).To(Equal(5.0))
			Expect(last.Deflection).NotTo(Equal(baseline.Deflection[baseline.Len()-1]))
		})

		It("rejects invalid parameters", func() {
			p := scenario(dynamo.ScenarioInitialOffset)
			p.Physical.SpoolMax = 0
			_, err := sim.NewStepper(p, nil)
			Expect(err).To(MatchError(dynamo.ErrParameterBounds))
		})
	})
})
