package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/ini.v1"
)

// LoadINI reads the `[global]` section of an INI file at path into a
// Config seeded from Default(), per spec §6. Unrecognized keys are
// ignored; missing keys keep their default value.
func LoadINI(path string) (Config, error) {
	cfg := Default()

	f, err := ini.Load(path)
	if err != nil {
		return cfg, fmt.Errorf("config: load %s: %w", path, err)
	}
	sec := f.Section("global")

	strField := func(key string, dst *string) {
		if sec.HasKey(key) {
			*dst = sec.Key(key).String()
		}
	}
	intField := func(key string, dst *int) {
		if sec.HasKey(key) {
			if v, err := sec.Key(key).Int(); err == nil {
				*dst = v
			}
		}
	}
	int64Field := func(key string, dst *int64) {
		if sec.HasKey(key) {
			if v, err := sec.Key(key).Int64(); err == nil {
				*dst = v
			}
		}
	}
	boolField := func(key string, dst *bool) {
		if sec.HasKey(key) {
			if v, err := sec.Key(key).Bool(); err == nil {
				*dst = v
			}
		}
	}

	strField("bind_addr", &cfg.BindAddr)
	intField("bind_port", &cfg.BindPort)
	strField("http_root", &cfg.HTTPRoot)
	intField("num_workers", &cfg.NumWorkers)
	int64Field("max_pixels", &cfg.MaxPixels)
	intField("def_quality", &cfg.DefQuality)
	int64Field("min_recompress_pixels", &cfg.MinRecompressPixels)
	boolField("allow_post", &cfg.AllowPost)
	boolField("allow_todisk", &cfg.AllowToDisk)
	boolField("allow_mkdir", &cfg.AllowMkdir)
	boolField("allow_overwrite", &cfg.AllowOverwrite)
	strField("todisk_root", &cfg.ToDiskRoot)
	strField("statsd_server", &cfg.StatsdServer)
	intField("statsd_port", &cfg.StatsdPort)
	strField("statsd_prefix", &cfg.StatsdPrefix)
	boolField("redis_cluster", &cfg.RedisCluster)
	strField("redis_prefix", &cfg.RedisPrefix)
	intField("log_max_line", &cfg.LogMaxLine)
	boolField("debug", &cfg.Debug)

	if sec.HasKey("req_timeout") {
		raw := sec.Key("req_timeout").String()
		if raw != "" && raw != "none" {
			if secs, err := strconv.Atoi(raw); err == nil {
				cfg.ReqTimeout = time.Duration(secs) * time.Second
			}
		}
	}
	if sec.HasKey("redis_hosts") {
		raw := sec.Key("redis_hosts").String()
		if raw != "" {
			cfg.RedisHosts = strings.Split(raw, ",")
			for i := range cfg.RedisHosts {
				cfg.RedisHosts[i] = strings.TrimSpace(cfg.RedisHosts[i])
			}
		}
	}

	return cfg, nil
}
