package storage_test

import (
	"math"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/jhu066/ijon-taliro/internal/dynamo"
	"github.com/jhu066/ijon-taliro/internal/storage"
)

func evaluation(cost float64, xs ...float64) dynamo.Evaluation {
	e := dynamo.Evaluation{Cost: cost}
	for i, x := range xs {
		e.Trace.Times = append(e.Trace.Times, float64(i))
		e.Trace.States = append(e.Trace.States, dynamo.State{X: x, Y: 176, Dead: i == len(xs)-1})
		e.Model = append(e.Model, dynamo.Commands[i%len(dynamo.Commands)])
	}
	return e
}

func collection() dynamo.RunCollection {
	truncated := evaluation(-2.5, 40, 41)
	truncated.Trace.Times = append(truncated.Trace.Times, 2, 3)

	return dynamo.RunCollection{
		{
			ID:          "run-a",
			Seed:        7,
			Optimizer:   "annealing",
			Evaluations: []dynamo.Evaluation{evaluation(5.0, 40, 48.5), evaluation(1.0, 40, 60, 90)},
		},
		{
			ID:   "run-b",
			Seed: 8,
			Evaluations: []dynamo.Evaluation{
				evaluation(3.0, 40),
				truncated,
				{Cost: math.Inf(1), Trace: dynamo.Trajectory{Times: []float64{0}, States: []dynamo.State{}}, Model: dynamo.CommandSequence{"1,1"}, Failure: "exit status 1"},
			},
		},
	}
}

var _ = Describe("NormalizePath", func() {
	It("appends the canonical extension and keeps existing suffixes", func() {
		Expect(storage.NormalizePath("results")).To(Equal("results.runs"))
		Expect(storage.NormalizePath("results.json")).To(Equal("results.json.runs"))
		Expect(storage.NormalizePath("out/results.runs")).To(Equal("out/results.runs"))
	})
})

var _ = Describe("Run store", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	Describe("Save and Load", func() {
		It("round-trips a non-empty collection", func() {
			runs := collection()

			path, err := storage.Save(runs, filepath.Join(dir, "results.json"))
			Expect(err).NotTo(HaveOccurred())
			Expect(path).To(Equal(filepath.Join(dir, "results.json.runs")))
			Expect(path).To(BeAnExistingFile())

			loaded, err := storage.Load(filepath.Join(dir, "results.json"))
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(HaveLen(len(runs)))

			for r := range runs {
				Expect(loaded[r].ID).To(Equal(runs[r].ID))
				Expect(loaded[r].Seed).To(Equal(runs[r].Seed))
				Expect(loaded[r].Optimizer).To(Equal(runs[r].Optimizer))
				Expect(loaded[r].Evaluations).To(HaveLen(len(runs[r].Evaluations)))
				for e, want := range runs[r].Evaluations {
					got := loaded[r].Evaluations[e]
					Expect(got.Cost).To(Equal(want.Cost))
					Expect(got.Trace.Times).To(Equal(want.Trace.Times))
					Expect(got.Trace.States).To(Equal(want.Trace.States))
					Expect(got.Model).To(Equal(want.Model))
					Expect(got.Failure).To(Equal(want.Failure))
				}
			}
		})

		It("round-trips the empty collection", func() {
			_, err := storage.Save(dynamo.RunCollection{}, filepath.Join(dir, "empty"))
			Expect(err).NotTo(HaveOccurred())

			loaded, err := storage.Load(filepath.Join(dir, "empty"))
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(BeEmpty())
		})

		It("keeps non-finite costs", func() {
			runs := dynamo.RunCollection{{Evaluations: []dynamo.Evaluation{
				{Cost: math.Inf(-1), Model: dynamo.CommandSequence{}},
				{Cost: math.NaN(), Model: dynamo.CommandSequence{}},
			}}}
			_, err := storage.Save(runs, filepath.Join(dir, "odd"))
			Expect(err).NotTo(HaveOccurred())

			loaded, err := storage.Load(filepath.Join(dir, "odd"))
			Expect(err).NotTo(HaveOccurred())
			Expect(math.IsInf(loaded[0].Evaluations[0].Cost, -1)).To(BeTrue())
			Expect(math.IsNaN(loaded[0].Evaluations[1].Cost)).To(BeTrue())
		})

		It("replaces an existing file and leaves no temporary files", func() {
			target := filepath.Join(dir, "results.runs")
			_, err := storage.Save(collection(), target)
			Expect(err).NotTo(HaveOccurred())
			_, err = storage.Save(dynamo.RunCollection{}, target)
			Expect(err).NotTo(HaveOccurred())

			loaded, err := storage.Load(target)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(BeEmpty())

			entries, err := os.ReadDir(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(1))
		})

		It("reports a missing file as not found", func() {
			_, err := storage.Load(filepath.Join(dir, "missing"))
			Expect(err).To(MatchError(dynamo.ErrNotFound))
		})

		It("reports an unreadable path as an invalid run file", func() {
			path := filepath.Join(dir, "results.runs")
			Expect(os.Mkdir(path, 0755)).To(Succeed())

			_, err := storage.Load(path)
			Expect(err).To(MatchError(dynamo.ErrInvalidFormat))
			Expect(err).NotTo(MatchError(dynamo.ErrNotFound))
		})

		It("does not find a file saved under a replaced suffix", func() {
			Expect(os.WriteFile(filepath.Join(dir, "results.json"), []byte("{}"), 0644)).To(Succeed())

			_, err := storage.Load(filepath.Join(dir, "results.json"))
			Expect(err).To(MatchError(dynamo.ErrNotFound))
		})
	})

	Describe("Load validation", func() {
		write := func(body string) string {
			path := filepath.Join(dir, "bad.runs")
			Expect(os.WriteFile(path, []byte(body), 0644)).To(Succeed())
			return path
		}

		DescribeTable("rejects values that are not run collections",
			func(body string) {
				_, err := storage.Load(write(body))
				Expect(err).To(MatchError(dynamo.ErrInvalidFormat))
				Expect(err).NotTo(MatchError(dynamo.ErrSchemaVersion))

				var formatErr *dynamo.FormatError
				Expect(err).To(BeAssignableToTypeOf(formatErr))
			},
			Entry("garbage", "not json at all"),
			Entry("bare list", `[1, 2, 3]`),
			Entry("foreign tag", `{"format":"pickle","version":1,"runs":[]}`),
			Entry("null runs", `{"format":"ijon-taliro/runs","version":1,"runs":null}`),
			Entry("runs as object", `{"format":"ijon-taliro/runs","version":1,"runs":{"a":1}}`),
			Entry("run without evaluations", `{"format":"ijon-taliro/runs","version":1,"runs":[{"id":"x","seed":1}]}`),
			Entry("evaluation without cost", `{"format":"ijon-taliro/runs","version":1,"runs":[{"evaluations":[{"trace":{"times":[],"states":[]},"model":[]}]}]}`),
			Entry("cost as text", `{"format":"ijon-taliro/runs","version":1,"runs":[{"evaluations":[{"cost":"low","trace":{"times":[],"states":[]},"model":[]}]}]}`),
			Entry("state without y", `{"format":"ijon-taliro/runs","version":1,"runs":[{"evaluations":[{"cost":1,"trace":{"times":[0],"states":[{"x":1}]},"model":["0,0"]}]}]}`),
			Entry("unknown command", `{"format":"ijon-taliro/runs","version":1,"runs":[{"evaluations":[{"cost":1,"trace":{"times":[],"states":[]},"model":["2,2"]}]}]}`),
			Entry("unknown field", `{"format":"ijon-taliro/runs","version":1,"runs":[{"evaluations":[],"extra":true}]}`),
		)

		It("distinguishes an older schema from a wrong shape", func() {
			_, err := storage.Load(write(`{"format":"ijon-taliro/runs","version":0,"runs":[]}`))
			Expect(err).To(MatchError(dynamo.ErrInvalidFormat))
			Expect(err).To(MatchError(dynamo.ErrSchemaVersion))

			_, err = storage.Load(write(`{"format":"ijon-taliro/runs","version":2,"runs":[]}`))
			Expect(err).To(MatchError(dynamo.ErrSchemaVersion))
		})
	})
})

var _ = Describe("Best", func() {
	It("returns the minimum-cost evaluation across runs", func() {
		runs := dynamo.RunCollection{
			{Evaluations: []dynamo.Evaluation{evaluation(5.0, 1)}},
			{Evaluations: []dynamo.Evaluation{evaluation(1.0, 2), evaluation(3.0, 3)}},
		}

		best, err := storage.Best(runs)
		Expect(err).NotTo(HaveOccurred())
		Expect(best.Cost).To(Equal(1.0))
		Expect(best.Trace.States[0].X).To(Equal(2.0))

		r, e, err := storage.Locate(runs)
		Expect(err).NotTo(HaveOccurred())
		Expect([]int{r, e}).To(Equal([]int{1, 0}))
	})

	It("keeps the first of equal costs", func() {
		runs := dynamo.RunCollection{
			{Evaluations: []dynamo.Evaluation{evaluation(2.0, 10), evaluation(1.0, 11)}},
			{Evaluations: []dynamo.Evaluation{evaluation(1.0, 12)}},
		}

		best, err := storage.Best(runs)
		Expect(err).NotTo(HaveOccurred())
		Expect(best.Trace.States[0].X).To(Equal(11.0))
	})

	It("orders NaN costs last", func() {
		runs := dynamo.RunCollection{{Evaluations: []dynamo.Evaluation{
			evaluation(math.NaN(), 1), evaluation(math.Inf(1), 2), evaluation(4, 3),
		}}}

		best, err := storage.Best(runs)
		Expect(err).NotTo(HaveOccurred())
		Expect(best.Cost).To(Equal(4.0))
	})

	It("fails on a collection without evaluations", func() {
		_, err := storage.Best(dynamo.RunCollection{})
		Expect(err).To(MatchError(dynamo.ErrEmptyCollection))

		_, err = storage.Best(dynamo.RunCollection{{ID: "empty"}, {ID: "also-empty"}})
		Expect(err).To(MatchError(dynamo.ErrEmptyCollection))
	})
})
