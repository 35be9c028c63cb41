package cli

import (
	"archive/zip"
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"OnTimeDelay/src/config"
	"OnTimeDelay/src/processor"
	"OnTimeDelay/src/storage"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const header = "Year,Reporting_Airline,OriginAirportID,Cancelled,Diverted,DivReachedDest," +
	"ActualElapsedTime,ArrDelay,DivActualElapsedTime,DivArrDelay," +
	"DepDelayMinutes,CRSElapsedTime,DepDel15,DepTimeBlk,CarrierDelay,Div1Airport\n"

// 每个月 3 行, 第一个月有一个取消航班, 第二个月有一个未到达的备降航班
var months = map[string]string{
	"1": header +
		"2019,UA,14771,0,0,,100,5,,,0,100,0,0600-0659,,\n" +
		"2019,UA,14771,1,0,,,,,,,100,,0600-0659,,\n" +
		"2019,DL,14771,0,1,1,,,150,40,20,120,1,1800-1859,20,SFO\n",
	"2": header +
		"2019,DL,14771,0,1,0,,,,,30,120,1,1800-1859,30,OAK\n" +
		"2019,UA,12478,0,0,,100,,,,10,50,0,1800-1859,,\n" +
		"2019,DL,14771,0,0,,120,60,,,60,120,1,1800-1859,40,\n",
}

func zipCSV(t *testing.T, name, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(name)
	require.NoError(t, err)
	_, err = w.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// setup 启动归档服务并写出配置目录
func setup(t *testing.T) (dir string, cfg map[string]interface{}) {
	t.Helper()
	archives := map[string][]byte{}
	for period, body := range months {
		archives["/ontime_"+period+".zip"] = zipCSV(t, "ontime_"+period+".csv", body)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := archives[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)

	dir = t.TempDir()
	cfg = map[string]interface{}{
		"download": map[string]interface{}{
			"base_url": srv.URL + "/",
			"prefix":   "ontime_",
			"suffix":   ".zip",
			"periods":  []string{"1", "2"},
		},
		"work_dir":      filepath.Join(dir, "data"),
		"member_suffix": ".csv",
		"snapshot": map[string]interface{}{
			"path":         filepath.Join(dir, "out", "cotp_save.feather"),
			"parquet_path": filepath.Join(dir, "out", "cotp_save.parquet"),
		},
		"report": map[string]interface{}{
			"output": filepath.Join(dir, "out", "carrier_delay.xlsx"),
		},
		"log_name":  filepath.Join(dir, "logs", "app.log"),
		"log_level": "INFO",
	}
	writeJSON(t, filepath.Join(dir, configFile), cfg)
	writeJSON(t, filepath.Join(dir, dataConfigFile), map[string]interface{}{
		"irrelevant_columns":    []string{"Year", "Cancelled", "DivReachedDest"},
		"diversion_leg_columns": []string{"Div1Airport"},
	})
	return dir, cfg
}

func writeJSON(t *testing.T, path string, v interface{}) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestCommandTree(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"run", "stats", "query", "schedule", "watch"}, names)

	for _, flag := range []string{"config-dir", "periods", "airport", "snapshot"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), flag)
	}
	assert.True(t, root.SilenceUsage)
	assert.True(t, root.SilenceErrors)
}

func TestApplyOverrides(t *testing.T) {
	opts := &options{}
	cmd := &cobra.Command{Use: "x"}
	cmd.Flags().StringSliceVar(&opts.periods, "periods", nil, "")
	cmd.Flags().IntVar(&opts.airport, "airport", 0, "")
	cmd.Flags().StringVar(&opts.snapshot, "snapshot", "", "")
	require.NoError(t, cmd.Flags().Parse([]string{"--periods", "3,4", "--airport", "12478"}))

	cfg := &config.Config{}
	cfg.Snapshot.Path = "keep.feather"
	applyOverrides(cfg, cmd.Flags(), opts)

	assert.Equal(t, []string{"3", "4"}, cfg.Download.Periods)
	assert.Equal(t, 12478, cfg.Report.AirportID)
	assert.Equal(t, "keep.feather", cfg.Snapshot.Path)
}

func TestRunStatsAndQuery(t *testing.T) {
	dir, cfg := setup(t)
	snap := cfg["snapshot"].(map[string]interface{})
	report := cfg["report"].(map[string]interface{})["output"].(string)

	out, err := execute(t, "--config-dir", dir, "--airport", "14771", "run")
	require.NoError(t, err)
	assert.Contains(t, out, "carrier")
	assert.Contains(t, out, "运行完成")

	// 两个月共 6 行, 去掉取消航班和未到达的备降航班
	df, err := storage.ReadFeather(snap["path"].(string))
	require.NoError(t, err)
	assert.Equal(t, 4, df.Nrow())
	names := df.Names()
	for _, gone := range []string{"Year", "Cancelled", "DivReachedDest", "Div1Airport", "DivArrDelay"} {
		assert.NotContains(t, names, gone)
	}
	assert.Contains(t, names, processor.ColDepDel0)

	// 备降航班使用 Div 字段
	arr := df.Col(processor.ColArrDelay).Float()
	assert.Equal(t, 40.0, arr[1])

	f, err := excelize.OpenFile(report)
	require.NoError(t, err)
	assert.Equal(t, []string{"carriers", "causes", "time_blocks"}, f.GetSheetList())
	require.NoError(t, f.Close())

	out, err = execute(t, "--config-dir", dir, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "UA")
	assert.Contains(t, out, "DL")

	out, err = execute(t, "--config-dir", dir, "query", "SELECT COUNT(*) AS n FROM flights")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	assert.Equal(t, "4", lines[len(lines)-1])
}

func TestRunFailsOnMissingPeriod(t *testing.T) {
	dir, _ := setup(t)
	_, err := execute(t, "--config-dir", dir, "--periods", "1,7", "run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "period 7")
}

func TestRunReusesSnapshot(t *testing.T) {
	dir, cfg := setup(t)
	snapPath := filepath.Join(dir, "given.feather")
	given := dataframe.New(
		series.New([]string{"AA"}, series.String, processor.ColCarrier),
		series.New([]int{14771}, series.Int, processor.ColOriginAirportID),
		series.New([]float64{5}, series.Float, processor.ColDepDelayMinutes),
		series.New([]bool{true}, series.Bool, processor.ColDepDel0),
		series.New([]float64{1}, series.Float, processor.ColDepDel15),
		series.New([]float64{5}, series.Float, processor.ColDepDelayMinutesPerc),
	)
	require.NoError(t, storage.WriteFeather(given, snapPath))

	cfg["snapshot"].(map[string]interface{})["reuse"] = true
	cfg["download"].(map[string]interface{})["base_url"] = "http://127.0.0.1:1/"
	writeJSON(t, filepath.Join(dir, configFile), cfg)

	out, err := execute(t, "--config-dir", dir, "--snapshot", snapPath, "run")
	require.NoError(t, err)
	assert.Contains(t, out, "AA")
	assert.Contains(t, out, "复用快照")
	assert.Contains(t, out, "出发机场 14771: 1 个航班")
	assert.Contains(t, out, "运行完成")
}

func TestInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	writeJSON(t, filepath.Join(dir, configFile), map[string]interface{}{"work_dir": ""})
	_, err := execute(t, "--config-dir", dir, "run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "work_dir")
}

func TestLogMux(t *testing.T) {
	logger, err := storage.NewLogger(filepath.Join(t.TempDir(), "app.log"))
	require.NoError(t, err)
	logger.SetConsole(nil)
	defer logger.Close()

	frame := &processor.FlightFrame{}
	srv := httptest.NewServer(newLogMux(logger, frame))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/status")
	require.NoError(t, err)
	var st frameStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	resp.Body.Close()
	assert.Equal(t, 0, st.Rows)
	assert.True(t, st.Updated.IsZero())

	frame.SetDF(dataframe.New(series.New([]int{1, 2}, series.Int, "a")))
	resp, err = http.Get(srv.URL + "/status")
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	resp.Body.Close()
	assert.Equal(t, 2, st.Rows)
	assert.Equal(t, 1, st.Columns)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err = client.Get(srv.URL + "/logs")
	require.NoError(t, err)
	defer resp.Body.Close()

	logger.Info("hello stream")
	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, line, "INFO: hello stream")
}
