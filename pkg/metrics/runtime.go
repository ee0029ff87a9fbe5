package metrics

import "runtime"

// CollectRuntime registers goroutine and heap gauges refreshed on every Render.
func (r *Registry) CollectRuntime() {
	goroutines := r.Gauge("go_goroutines", "Number of goroutines")
	heap := r.Gauge("go_memstats_heap_alloc_bytes", "Heap bytes allocated and in use")
	gcs := r.Gauge("go_gc_cycles_total", "Completed GC cycles")
	r.OnCollect(func() {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		goroutines.Set(float64(runtime.NumGoroutine()))
		heap.Set(float64(ms.HeapAlloc))
		gcs.Set(float64(ms.NumGC))
	})
}
