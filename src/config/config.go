package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀, 例如 ONTIME_DOWNLOAD_BASE_URL
const EnvPrefix = "ONTIME"

// Config 运行配置
type Config struct {
	Download struct {
		BaseURL  string        `mapstructure:"base_url"` // 归档下载地址前缀
		Prefix   string        `mapstructure:"prefix"`   // 归档文件名前缀
		Periods  []string      `mapstructure:"periods"`  // 月份标记, 按顺序下载
		Suffix   string        `mapstructure:"suffix"`   // 归档文件名后缀
		Timeout  time.Duration `mapstructure:"timeout"`  // 单次请求超时, 0 表示不限制
		Interval time.Duration `mapstructure:"interval"` // 两次请求的最小间隔
	} `mapstructure:"download"`

	WorkDir       string `mapstructure:"work_dir"`       // 归档和CSV的落地目录
	MemberSuffix  string `mapstructure:"member_suffix"`  // 归档中需要解压的成员后缀
	StrictColumns bool   `mapstructure:"strict_columns"` // 各文件列集合不一致时直接报错

	Snapshot struct {
		Path        string `mapstructure:"path"`         // feather 快照
		ParquetPath string `mapstructure:"parquet_path"` // parquet 快照, 供 SQL 查询
		Reuse       bool   `mapstructure:"reuse"`        // 快照存在时跳过下载和清洗
	} `mapstructure:"snapshot"`

	Report struct {
		AirportID int    `mapstructure:"airport_id"` // 统计的出发机场, 0 表示全部
		Output    string `mapstructure:"output"`     // xlsx 报表路径
	} `mapstructure:"report"`

	Schedule struct {
		Spec    string `mapstructure:"spec"`     // cron 表达式
		LogAddr string `mapstructure:"log_addr"` // 实时日志 HTTP 地址, 空表示不启动
	} `mapstructure:"schedule"`

	InboxDir string `mapstructure:"inbox_dir"` // watch 命令监控的目录

	Publish struct {
		Endpoint  string `mapstructure:"endpoint"`
		AccessKey string `mapstructure:"access_key"`
		SecretKey string `mapstructure:"secret_key"`
		Bucket    string `mapstructure:"bucket"`
		Prefix    string `mapstructure:"prefix"`
		Region    string `mapstructure:"region"`
		Secure    bool   `mapstructure:"secure"`
	} `mapstructure:"publish"`

	LogName    string `mapstructure:"log_name"`
	LogMaxSize string `mapstructure:"log_max_size"`
	LogLevel   string `mapstructure:"log_level"`
}

// DataConfig 列配置: 需要删除的列以及解析时的列类型.
// 列表为空时使用 processor 包内置的列表.
type DataConfig struct {
	IrrelevantColumns   []string     `mapstructure:"irrelevant_columns"`
	DiversionLegColumns []string     `mapstructure:"diversion_leg_columns"`
	ColumnTypes         []ColumnSpec `mapstructure:"column_types"`
}

// ColumnSpec 单列类型声明. viper 会把 map 的键转成小写, 所以列名放在值里.
type ColumnSpec struct {
	Name string `mapstructure:"name"`
	Type string `mapstructure:"type"` // float|int|string|bool
}

var (
	once               sync.Once
	instance           *Config
	dataConfigInstance *DataConfig
	loadErr            error
	mu                 sync.RWMutex
)

// LoadConfig 进程内只加载一次配置
func LoadConfig(jsonFolder, jsonFile, dataJsonFile string) (*Config, *DataConfig, error) {
	once.Do(func() {
		instance, dataConfigInstance, loadErr = Load(jsonFolder, jsonFile, dataJsonFile)
	})
	return instance, dataConfigInstance, loadErr
}

// Load 读取两个配置文件并发解析, 文件不存在时使用默认值
func Load(jsonFolder, jsonFile, dataJsonFile string) (*Config, *DataConfig, error) {
	configFile := filepath.Join(jsonFolder, jsonFile)
	dataConfigFile := filepath.Join(jsonFolder, dataJsonFile)

	configData, err := readFile(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	dataConfigData, err := readFile(dataConfigFile)
	if err != nil {
		return nil, nil, fmt.Errorf("读取数据配置文件失败: %w", err)
	}

	cfgChan := make(chan *Config, 1)
	dcfgChan := make(chan *DataConfig, 1)
	errChan := make(chan error, 2)

	go parseConfig(configData, cfgChan, errChan)
	go parseDataConfig(dataConfigData, dcfgChan, errChan)

	cfg, dcfg, err := waitForResults(cfgChan, dcfgChan, errChan)
	if err != nil {
		return nil, nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, dcfg, nil
}

// readFile 文件不存在返回 nil, 交给默认值处理
func readFile(filePath string) ([]byte, error) {
	data, err := os.ReadFile(filePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("无法读取文件 %s: %w", filePath, err)
	}
	return data, nil
}

func newViper(data []byte, defaults func(*viper.Viper)) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("json")
	defaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if data != nil {
		if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func parseConfig(data []byte, resultChan chan<- *Config, errChan chan<- error) {
	v, err := newViper(data, setDefaults)
	if err != nil {
		errChan <- fmt.Errorf("解析Config失败: %w", err)
		return
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		errChan <- fmt.Errorf("解析Config失败: %w", err)
		return
	}
	resultChan <- &cfg
}

func parseDataConfig(data []byte, resultChan chan<- *DataConfig, errChan chan<- error) {
	v, err := newViper(data, setDataDefaults)
	if err != nil {
		errChan <- fmt.Errorf("解析DataConfig失败: %w", err)
		return
	}
	var dcfg DataConfig
	if err := v.Unmarshal(&dcfg); err != nil {
		errChan <- fmt.Errorf("解析DataConfig失败: %w", err)
		return
	}
	resultChan <- &dcfg
}

func waitForResults(
	cfgChan <-chan *Config,
	dcfgChan <-chan *DataConfig,
	errChan <-chan error,
) (*Config, *DataConfig, error) {
	var (
		cfg  *Config
		dcfg *DataConfig
		errs []error
	)

	for i := 0; i < 2; i++ {
		select {
		case c := <-cfgChan:
			cfg = c
		case d := <-dcfgChan:
			dcfg = d
		case err := <-errChan:
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return nil, nil, combineErrors(errs)
	}

	if cfg == nil || dcfg == nil {
		return nil, nil, fmt.Errorf("部分配置未加载成功")
	}

	return cfg, dcfg, nil
}

func combineErrors(errs []error) error {
	if len(errs) == 1 {
		return errs[0]
	}
	return fmt.Errorf("配置加载遇到多个错误: %w", errors.Join(errs...))
}

// Validate 检查必填项
func (c *Config) Validate() error {
	var missing []string
	if c.Download.BaseURL == "" {
		missing = append(missing, "download.base_url")
	}
	if len(c.Download.Periods) == 0 {
		missing = append(missing, "download.periods")
	}
	if c.WorkDir == "" {
		missing = append(missing, "work_dir")
	}
	if c.MemberSuffix == "" {
		missing = append(missing, "member_suffix")
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing required values: %s", strings.Join(missing, ", "))
	}
	if c.Download.Timeout < 0 || c.Download.Interval < 0 {
		return fmt.Errorf("config: download timeout and interval must not be negative")
	}
	return nil
}

// ColumnType 读取列类型配置(线程安全)
func (dc *DataConfig) ColumnType(colName string) (string, bool) {
	mu.RLock()
	defer mu.RUnlock()
	for _, c := range dc.ColumnTypes {
		if c.Name == colName {
			return c.Type, true
		}
	}
	return "", false
}

// SetColumnType 设置列类型
func (dc *DataConfig) SetColumnType(colName, typ string) {
	mu.Lock()
	defer mu.Unlock()
	for i := range dc.ColumnTypes {
		if dc.ColumnTypes[i].Name == colName {
			dc.ColumnTypes[i].Type = typ
			return
		}
	}
	dc.ColumnTypes = append(dc.ColumnTypes, ColumnSpec{Name: colName, Type: typ})
}
