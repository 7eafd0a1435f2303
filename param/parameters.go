/***************************************************************
 *
 * Copyright (C) 2026, Pelican Project, Morgridge Institute for Research
 *
 * Licensed under the Apache License, Version 2.0 (the "License"); you
 * may not use this file except in compliance with the License.  You may
 * obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 ***************************************************************/

package param

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type (
	// Config is the decoded snapshot of every known key.
	Config struct {
		ConfigDir string `mapstructure:"configdir"`
		Debug     bool   `mapstructure:"debug"`
		Logging   struct {
			Level       string `mapstructure:"level"`
			LogLocation string `mapstructure:"loglocation"`
		} `mapstructure:"logging"`
		Monitoring struct {
			EnablePrometheus bool `mapstructure:"enableprometheus"`
		} `mapstructure:"monitoring"`
		Server struct {
			WebHost string `mapstructure:"webhost"`
			WebPort int    `mapstructure:"webport"`
		} `mapstructure:"server"`
		SignedUrl struct {
			AllowedBuckets      []string      `mapstructure:"allowedbuckets"`
			BatchConcurrency    int           `mapstructure:"batchconcurrency"`
			CacheBuffer         time.Duration `mapstructure:"cachebuffer"`
			DefaultExpiry       time.Duration `mapstructure:"defaultexpiry"`
			FailureCooldown     time.Duration `mapstructure:"failurecooldown"`
			MaintenanceInterval time.Duration `mapstructure:"maintenanceinterval"`
			MaxCacheLifetime    time.Duration `mapstructure:"maxcachelifetime"`
			MaxExpiry           time.Duration `mapstructure:"maxexpiry"`
			MaxPathLength       int           `mapstructure:"maxpathlength"`
			MaxRetries          int           `mapstructure:"maxretries"`
			PrefetchBatchSize   int           `mapstructure:"prefetchbatchsize"`
			PrefetchConcurrency int           `mapstructure:"prefetchconcurrency"`
			PrefetchExpiry      time.Duration `mapstructure:"prefetchexpiry"`
			RetryBaseDelay      time.Duration `mapstructure:"retrybasedelay"`
			StaleBuffer         time.Duration `mapstructure:"stalebuffer"`
		} `mapstructure:"signedurl"`
		Storage struct {
			ApiKey         string        `mapstructure:"apikey"`
			RateLimit      int           `mapstructure:"ratelimit"`
			RequestTimeout time.Duration `mapstructure:"requesttimeout"`
			Token          string        `mapstructure:"token"`
			TokenLocation  string        `mapstructure:"tokenlocation"`
			Url            string        `mapstructure:"url"`
		} `mapstructure:"storage"`
		TLSSkipVerify bool `mapstructure:"tlsskipverify"`
		Transport     struct {
			DialerKeepAlive       time.Duration `mapstructure:"dialerkeepalive"`
			DialerTimeout         time.Duration `mapstructure:"dialertimeout"`
			ExpectContinueTimeout time.Duration `mapstructure:"expectcontinuetimeout"`
			IdleConnTimeout       time.Duration `mapstructure:"idleconntimeout"`
			MaxIdleConns          int           `mapstructure:"maxidleconns"`
			ResponseHeaderTimeout time.Duration `mapstructure:"responseheadertimeout"`
			TLSHandshakeTimeout   time.Duration `mapstructure:"tlshandshaketimeout"`
		} `mapstructure:"transport"`
	}

	StringParam struct {
		name string
	}

	StringSliceParam struct {
		name string
	}

	BoolParam struct {
		name string
	}

	IntParam struct {
		name string
	}

	DurationParam struct {
		name string
	}
)

// Sorted; the env binding and the snapshot overlay both walk this list.
var allParameterNames = []string{
	"ConfigDir",
	"Debug",
	"Logging.Level",
	"Logging.LogLocation",
	"Monitoring.EnablePrometheus",
	"Server.WebHost",
	"Server.WebPort",
	"SignedUrl.AllowedBuckets",
	"SignedUrl.BatchConcurrency",
	"SignedUrl.CacheBuffer",
	"SignedUrl.DefaultExpiry",
	"SignedUrl.FailureCooldown",
	"SignedUrl.MaintenanceInterval",
	"SignedUrl.MaxCacheLifetime",
	"SignedUrl.MaxExpiry",
	"SignedUrl.MaxPathLength",
	"SignedUrl.MaxRetries",
	"SignedUrl.PrefetchBatchSize",
	"SignedUrl.PrefetchConcurrency",
	"SignedUrl.PrefetchExpiry",
	"SignedUrl.RetryBaseDelay",
	"SignedUrl.StaleBuffer",
	"Storage.ApiKey",
	"Storage.RateLimit",
	"Storage.RequestTimeout",
	"Storage.Token",
	"Storage.TokenLocation",
	"Storage.Url",
	"TLSSkipVerify",
	"Transport.DialerKeepAlive",
	"Transport.DialerTimeout",
	"Transport.ExpectContinueTimeout",
	"Transport.IdleConnTimeout",
	"Transport.MaxIdleConns",
	"Transport.ResponseHeaderTimeout",
	"Transport.TLSHandshakeTimeout",
}

var (
	ConfigDir             = StringParam{"ConfigDir"}
	Logging_Level         = StringParam{"Logging.Level"}
	Logging_LogLocation   = StringParam{"Logging.LogLocation"}
	Server_WebHost        = StringParam{"Server.WebHost"}
	Storage_ApiKey        = StringParam{"Storage.ApiKey"}
	Storage_Token         = StringParam{"Storage.Token"}
	Storage_TokenLocation = StringParam{"Storage.TokenLocation"}
	Storage_Url           = StringParam{"Storage.Url"}

	SignedUrl_AllowedBuckets = StringSliceParam{"SignedUrl.AllowedBuckets"}

	Debug                       = BoolParam{"Debug"}
	Monitoring_EnablePrometheus = BoolParam{"Monitoring.EnablePrometheus"}
	TLSSkipVerify               = BoolParam{"TLSSkipVerify"}

	Server_WebPort                = IntParam{"Server.WebPort"}
	SignedUrl_BatchConcurrency    = IntParam{"SignedUrl.BatchConcurrency"}
	SignedUrl_MaxPathLength       = IntParam{"SignedUrl.MaxPathLength"}
	SignedUrl_MaxRetries          = IntParam{"SignedUrl.MaxRetries"}
	SignedUrl_PrefetchBatchSize   = IntParam{"SignedUrl.PrefetchBatchSize"}
	SignedUrl_PrefetchConcurrency = IntParam{"SignedUrl.PrefetchConcurrency"}
	Storage_RateLimit             = IntParam{"Storage.RateLimit"}
	Transport_MaxIdleConns        = IntParam{"Transport.MaxIdleConns"}

	SignedUrl_CacheBuffer           = DurationParam{"SignedUrl.CacheBuffer"}
	SignedUrl_DefaultExpiry         = DurationParam{"SignedUrl.DefaultExpiry"}
	SignedUrl_FailureCooldown       = DurationParam{"SignedUrl.FailureCooldown"}
	SignedUrl_MaintenanceInterval   = DurationParam{"SignedUrl.MaintenanceInterval"}
	SignedUrl_MaxCacheLifetime      = DurationParam{"SignedUrl.MaxCacheLifetime"}
	SignedUrl_MaxExpiry             = DurationParam{"SignedUrl.MaxExpiry"}
	SignedUrl_PrefetchExpiry        = DurationParam{"SignedUrl.PrefetchExpiry"}
	SignedUrl_RetryBaseDelay        = DurationParam{"SignedUrl.RetryBaseDelay"}
	SignedUrl_StaleBuffer           = DurationParam{"SignedUrl.StaleBuffer"}
	Storage_RequestTimeout          = DurationParam{"Storage.RequestTimeout"}
	Transport_DialerKeepAlive       = DurationParam{"Transport.DialerKeepAlive"}
	Transport_DialerTimeout         = DurationParam{"Transport.DialerTimeout"}
	Transport_ExpectContinueTimeout = DurationParam{"Transport.ExpectContinueTimeout"}
	Transport_IdleConnTimeout       = DurationParam{"Transport.IdleConnTimeout"}
	Transport_ResponseHeaderTimeout = DurationParam{"Transport.ResponseHeaderTimeout"}
	Transport_TLSHandshakeTimeout   = DurationParam{"Transport.TLSHandshakeTimeout"}
)

// paramNameToEnvVar converts a parameter name (e.g., "Storage.Url") to its
// corresponding environment variable name (e.g., "MEDIADECK_STORAGE_URL").
func paramNameToEnvVar(paramName string) string {
	return "MEDIADECK_" + strings.ToUpper(strings.ReplaceAll(paramName, ".", "_"))
}

func (sP StringParam) GetString() string {
	config := getOrCreateConfig()
	switch sP.name {
	case "ConfigDir":
		return config.ConfigDir
	case "Logging.Level":
		return config.Logging.Level
	case "Logging.LogLocation":
		return config.Logging.LogLocation
	case "Server.WebHost":
		return config.Server.WebHost
	case "Storage.ApiKey":
		return config.Storage.ApiKey
	case "Storage.Token":
		return config.Storage.Token
	case "Storage.TokenLocation":
		return config.Storage.TokenLocation
	case "Storage.Url":
		return config.Storage.Url
	}
	return ""
}

func (sP StringParam) GetName() string {
	return sP.name
}

func (sP StringParam) IsSet() bool {
	return viper.IsSet(sP.name)
}

func (sP StringParam) GetEnvVarName() string {
	return paramNameToEnvVar(sP.name)
}

func (slP StringSliceParam) GetStringSlice() []string {
	config := getOrCreateConfig()
	switch slP.name {
	case "SignedUrl.AllowedBuckets":
		return config.SignedUrl.AllowedBuckets
	}
	return nil
}

func (slP StringSliceParam) GetName() string {
	return slP.name
}

func (slP StringSliceParam) IsSet() bool {
	return viper.IsSet(slP.name)
}

func (bP BoolParam) GetBool() bool {
	config := getOrCreateConfig()
	switch bP.name {
	case "Debug":
		return config.Debug
	case "Monitoring.EnablePrometheus":
		return config.Monitoring.EnablePrometheus
	case "TLSSkipVerify":
		return config.TLSSkipVerify
	}
	return false
}

func (bP BoolParam) GetName() string {
	return bP.name
}

func (bP BoolParam) IsSet() bool {
	return viper.IsSet(bP.name)
}

func (iP IntParam) GetInt() int {
	config := getOrCreateConfig()
	switch iP.name {
	case "Server.WebPort":
		return config.Server.WebPort
	case "SignedUrl.BatchConcurrency":
		return config.SignedUrl.BatchConcurrency
	case "SignedUrl.MaxPathLength":
		return config.SignedUrl.MaxPathLength
	case "SignedUrl.MaxRetries":
		return config.SignedUrl.MaxRetries
	case "SignedUrl.PrefetchBatchSize":
		return config.SignedUrl.PrefetchBatchSize
	case "SignedUrl.PrefetchConcurrency":
		return config.SignedUrl.PrefetchConcurrency
	case "Storage.RateLimit":
		return config.Storage.RateLimit
	case "Transport.MaxIdleConns":
		return config.Transport.MaxIdleConns
	}
	return 0
}

func (iP IntParam) GetName() string {
	return iP.name
}

func (iP IntParam) IsSet() bool {
	return viper.IsSet(iP.name)
}

func (dP DurationParam) GetDuration() time.Duration {
	config := getOrCreateConfig()
	switch dP.name {
	case "SignedUrl.CacheBuffer":
		return config.SignedUrl.CacheBuffer
	case "SignedUrl.DefaultExpiry":
		return config.SignedUrl.DefaultExpiry
	case "SignedUrl.FailureCooldown":
		return config.SignedUrl.FailureCooldown
	case "SignedUrl.MaintenanceInterval":
		return config.SignedUrl.MaintenanceInterval
	case "SignedUrl.MaxCacheLifetime":
		return config.SignedUrl.MaxCacheLifetime
	case "SignedUrl.MaxExpiry":
		return config.SignedUrl.MaxExpiry
	case "SignedUrl.PrefetchExpiry":
		return config.SignedUrl.PrefetchExpiry
	case "SignedUrl.RetryBaseDelay":
		return config.SignedUrl.RetryBaseDelay
	case "SignedUrl.StaleBuffer":
		return config.SignedUrl.StaleBuffer
	case "Storage.RequestTimeout":
		return config.Storage.RequestTimeout
	case "Transport.DialerKeepAlive":
		return config.Transport.DialerKeepAlive
	case "Transport.DialerTimeout":
		return config.Transport.DialerTimeout
	case "Transport.ExpectContinueTimeout":
		return config.Transport.ExpectContinueTimeout
	case "Transport.IdleConnTimeout":
		return config.Transport.IdleConnTimeout
	case "Transport.ResponseHeaderTimeout":
		return config.Transport.ResponseHeaderTimeout
	case "Transport.TLSHandshakeTimeout":
		return config.Transport.TLSHandshakeTimeout
	}
	return 0
}

func (dP DurationParam) GetName() string {
	return dP.name
}

func (dP DurationParam) IsSet() bool {
	return viper.IsSet(dP.name)
}
