package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"OnTimeDelay/src/datasource/file"
	"OnTimeDelay/src/processor"
	"OnTimeDelay/src/storage"

	"github.com/robfig/cron"
	"github.com/spf13/cobra"
)

func newScheduleCmd(opts *options) *cobra.Command {
	var now bool

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the pipeline on the configured cron spec",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			frame := &processor.FlightFrame{}
			job := func() {
				if err := a.logger.CheckRotate(a.cfg); err != nil {
					a.logger.Warning("日志轮转失败: " + err.Error())
				}
				df, err := a.execute(ctx, a.ingest, true)
				if err != nil {
					a.logger.Error("定时任务失败: " + err.Error())
					return
				}
				frame.SetDF(df)
			}

			c := cron.New()
			if err := c.AddFunc(a.cfg.Schedule.Spec, job); err != nil {
				return fmt.Errorf("add cron job %q: %w", a.cfg.Schedule.Spec, err)
			}
			c.Start()
			defer c.Stop()

			if addr := a.cfg.Schedule.LogAddr; addr != "" {
				srv := &http.Server{Addr: addr, Handler: newLogMux(a.logger, frame)}
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						a.logger.Error("日志服务退出: " + err.Error())
					}
				}()
				defer shutdownServer(srv)
				a.logger.Info("实时日志: http://" + addr + "/logs")
			}

			// SIGHUP: 外部轮转后重新打开日志文件
			hup := make(chan os.Signal, 1)
			signal.Notify(hup, syscall.SIGHUP)
			defer signal.Stop(hup)
			go func() {
				for range hup {
					if err := a.logger.Reopen(a.cfg.LogName); err != nil {
						a.logger.Error("重新打开日志失败: " + err.Error())
						continue
					}
					a.logger.Info("日志文件已重新打开")
				}
			}()

			a.logger.Info(fmt.Sprintf("定时任务已启动(%s), 按Ctrl+C退出", a.cfg.Schedule.Spec))
			if now {
				go job()
			}
			<-ctx.Done()
			a.logger.Info("收到退出信号, 正在关闭...")
			return nil
		},
	}
	cmd.Flags().BoolVar(&now, "now", false, "Also run once immediately")
	return cmd
}

func newWatchCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Ingest archives dropped into the inbox directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			monitor, err := file.NewFileMonitor(a.cfg.InboxDir, ".zip", file.DefaultSettle)
			if err != nil {
				return fmt.Errorf("watch %s: %w", a.cfg.InboxDir, err)
			}
			defer monitor.Close()

			a.logger.Info("监控目录 " + a.cfg.InboxDir)
			return monitor.Watch(ctx, func(path string) {
				a.logger.Info("发现归档 " + path)
				if _, err := a.execute(ctx, a.ingestArchive(path), true); err != nil {
					a.logger.Error(fmt.Sprintf("处理 %s 失败: %v", path, err))
				}
			})
		},
	}
}

// frameStatus /status 返回的内容
type frameStatus struct {
	Rows    int       `json:"rows"`
	Columns int       `json:"columns"`
	Updated time.Time `json:"updated"`
}

// newLogMux /logs 实时推送日志, /status 返回最近一次清洗结果的规模
func newLogMux(logger *storage.Logger, frame *processor.FlightFrame) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/logs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		logChan := logger.Subscribe()
		defer logger.Unsubscribe(logChan)
		flusher, _ := w.(http.Flusher)
		if flusher != nil {
			flusher.Flush()
		}

		for {
			select {
			case msg, ok := <-logChan:
				if !ok {
					return
				}
				// 客户端断开时写入失败
				if _, err := fmt.Fprint(w, msg); err != nil {
					return
				}
				if flusher != nil {
					flusher.Flush()
				}
			case <-r.Context().Done():
				return
			}
		}
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, _ *http.Request) {
		df, updated := frame.GetDF()
		st := frameStatus{Updated: updated}
		if !updated.IsZero() {
			st.Rows, st.Columns = df.Nrow(), df.Ncol()
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(st)
	})
	return mux
}

func shutdownServer(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}
