package config

import (
	"strconv"

	"github.com/spf13/viper"
)

const (
	DefaultBaseURL = "https://transtats.bts.gov/PREZIP/"
	DefaultPrefix  = "On_Time_Reporting_Carrier_On_Time_Performance_1987_present_2019_"
	DefaultSuffix  = ".zip"

	// SFO
	DefaultAirportID = 14771
)

// DefaultPeriods 一年的月份标记 "1".."12"
func DefaultPeriods() []string {
	periods := make([]string, 0, 12)
	for i := 1; i <= 12; i++ {
		periods = append(periods, strconv.Itoa(i))
	}
	return periods
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("download.base_url", DefaultBaseURL)
	v.SetDefault("download.prefix", DefaultPrefix)
	v.SetDefault("download.periods", DefaultPeriods())
	v.SetDefault("download.suffix", DefaultSuffix)
	v.SetDefault("download.timeout", "0s")
	v.SetDefault("download.interval", "0s")

	v.SetDefault("work_dir", "data")
	v.SetDefault("member_suffix", ".csv")
	v.SetDefault("strict_columns", false)

	v.SetDefault("snapshot.path", "cotp_save.feather")
	v.SetDefault("snapshot.parquet_path", "cotp_save.parquet")
	v.SetDefault("snapshot.reuse", false)

	v.SetDefault("report.airport_id", DefaultAirportID)
	v.SetDefault("report.output", "carrier_delay.xlsx")

	v.SetDefault("schedule.spec", "@every 720h")
	v.SetDefault("schedule.log_addr", "")

	v.SetDefault("inbox_dir", "inbox")

	v.SetDefault("publish.endpoint", "")
	v.SetDefault("publish.access_key", "")
	v.SetDefault("publish.secret_key", "")
	v.SetDefault("publish.bucket", "ontime")
	v.SetDefault("publish.prefix", "snapshots")
	v.SetDefault("publish.region", "us-east-1")
	v.SetDefault("publish.secure", false)

	v.SetDefault("log_name", "app.log")
	v.SetDefault("log_max_size", "10 * 1024 * 1024")
	v.SetDefault("log_level", "INFO")
}

func setDataDefaults(v *viper.Viper) {
	v.SetDefault("irrelevant_columns", []string{})
	v.SetDefault("diversion_leg_columns", []string{})
	v.SetDefault("column_types", []map[string]string{})
}
