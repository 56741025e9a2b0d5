package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"runtime/pprof"
	"time"

	"github.com/delaneyj/observa/observer"
	"github.com/dustin/go-humanize"
	"github.com/jamiealquiza/tachymeter"
	"github.com/jedib0t/go-pretty/v6/table"
)

var (
	ww    = []int{1, 10, 100, 1_000}
	hh    = []int{1, 10, 100, 1_000}
	iters = 100

	cpuProfile = flag.String("cpuprofile", "", "write a cpu profile to this file")
)

func main() {
	flag.Parse()

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			log.Fatal(err)
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	log.Printf("warming up")
	benchmarkPropagate(true, false)
	benchmarkPropagate(true, true)
}

// computed reads a lazy watcher the way a cached computed property does.
func computed(sys *observer.System, w *observer.Watcher) int {
	if w.Dirty() {
		if err := w.Evaluate(); err != nil {
			log.Panic(err)
		}
	}
	if sys.Target() != nil {
		w.Depend()
	}
	return w.Value().(int)
}

// buildGraph hangs w chains of h computed watchers off src, each ending in
// a watcher that reads the last computed. The end watchers are returned.
func buildGraph(sys *observer.System, src *observer.Object, w, h int) []*observer.Watcher {
	ends := make([]*observer.Watcher, 0, w)
	for i := 0; i < w; i++ {
		var last func() int
		last = func() int { return src.Get("v").(int) }
		for j := 0; j < h; j++ {
			prev := last
			cw, err := observer.NewWatcher(sys, func() (any, error) {
				return prev() + 1, nil
			}, nil, &observer.WatcherOptions{Lazy: true})
			if err != nil {
				log.Panic(err)
			}
			last = func() int { return computed(sys, cw) }
		}

		read := last
		end, err := observer.NewWatcher(sys, func() (any, error) {
			return read(), nil
		}, nil, nil)
		if err != nil {
			log.Panic(err)
		}
		ends = append(ends, end)
	}
	return ends
}

func benchmarkPropagate(shouldRender, sync bool) {
	title := "Observer propagation (next tick)"
	if sync {
		title = "Observer propagation (sync flush)"
	}
	tbl := table.NewWriter()
	tbl.SetTitle(title)
	tbl.SetOutputMirror(os.Stdout)
	tbl.AppendHeader(table.Row{"benchmark", "watchers", "avg", "min", "p75", "p99", "max"})

	for _, w := range ww {
		for _, h := range hh {
			tach := tachymeter.New(&tachymeter.Config{Size: iters})

			cfg := observer.DefaultConfig()
			cfg.Async = !sync
			sys := observer.NewSystem(observer.WithConfig(cfg), observer.WithErrorHandler(func(err error, ctx any, info string) {
				log.Panicf("%s: %v", info, err)
			}))
			src := observer.NewObject().With("v", 1)
			sys.Observe(src)
			buildGraph(sys, src, w, h)
			watchers := w * (h + 1)

			for i := 0; i < iters; i++ {
				start := time.Now()
				src.Set("v", src.Get("v").(int)+1)
				if err := sys.Tick(); err != nil {
					log.Panic(err)
				}
				tach.AddTime(time.Since(start))
			}

			calc := tach.Calc()
			tbl.AppendRows([]table.Row{
				{
					fmt.Sprintf("propagate: %d * %d", w, h),
					humanize.Comma(int64(watchers)),
					calc.Time.Avg,
					calc.Time.Min,
					calc.Time.P75,
					calc.Time.P99,
					calc.Time.Max,
				},
			})
		}
	}

	if shouldRender {
		tbl.Render()
	}
}
