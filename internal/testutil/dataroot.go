// Package testutil строит каталоги данных для тестов
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// SampleConfig конфигурация с двумя батчами, объявленными не по порядку вывода
const SampleConfig = `{
  "device": {"name": "rpi4"},
  "batches": {
    "batch1": {"probe_prefix": "probe_", "probes": ["flush"], "metrics": ["cache_misses", "branch_misses"]},
    "default": {"probe_prefix": "probe_", "probes": ["spectre"], "metrics": ["cycles", "instructions"]}
  },
  "attack_regions": [
    {"run": "run_02", "start": 1, "end": 2}
  ]
}`

// SampleRun run с колонкой index, метриками и probe-колонками
const SampleRun = `index,cycles,instructions,cache_misses,branch_misses,probe_spectre_a,probe_flush_b
0,100,50,4,1,0,0
1,200,0,6,2,1,0
2,300,100,8,3,0,0
3,400,200,0,4,0,1
4,500,250,10,5,0,0
`

// Device описание устройства для записи на диск.
// Workloads: workload -> run -> содержимое CSV.
type Device struct {
	Name      string
	Config    string
	Workloads map[string]map[string]string
}

// WriteDevice создает каталог устройства в root
func WriteDevice(t testing.TB, root string, d Device) string {
	t.Helper()

	dir := filepath.Join(root, d.Name)
	mustMkdir(t, dir)
	if d.Config != "" {
		mustWrite(t, filepath.Join(dir, "device_config.json"), d.Config)
	}
	for workload, runs := range d.Workloads {
		wdir := filepath.Join(dir, workload)
		mustMkdir(t, wdir)
		for run, content := range runs {
			mustWrite(t, filepath.Join(wdir, run+".csv"), content)
		}
	}
	return dir
}

// SampleRoot создает каталог с одним корректным устройством rpi4
func SampleRoot(t testing.TB) string {
	t.Helper()

	root := t.TempDir()
	WriteDevice(t, root, Device{
		Name:   "rpi4",
		Config: SampleConfig,
		Workloads: map[string]map[string]string{
			"aes": {
				"run_01":                  SampleRun,
				"run_02":                  SampleRun,
				"experiments_master_log": "run,notes\nrun_01,ok\n",
			},
			"idle": {},
		},
	})
	return root
}

// WriteFile записывает файл, создавая каталоги
func WriteFile(t testing.TB, path, content string) {
	t.Helper()
	mustMkdir(t, filepath.Dir(path))
	mustWrite(t, path, content)
}

func mustMkdir(t testing.TB, dir string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
}

func mustWrite(t testing.TB, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
