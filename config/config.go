// Copyright 2020 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/gorse-io/fairness/model/fairness"
	"github.com/juju/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gonum.org/v1/gonum/floats"
)

// Config is the configuration for evaluation.
type Config struct {
	Data       DataConfig       `mapstructure:"data"`
	Evaluation EvaluationConfig `mapstructure:"evaluation"`
	Output     OutputConfig     `mapstructure:"output"`
}

// DataConfig locates cross-validation folds, group files and recommendation lists.
type DataConfig struct {
	Store string          `mapstructure:"store" validate:"required"`
	S3    S3Config        `mapstructure:"s3"`
	GCS   GCSConfig       `mapstructure:"gcs"`
	Azure AzureBlobConfig `mapstructure:"azure"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
}

type GCSConfig struct {
	CredentialsFile string `mapstructure:"credentials_file"`
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
}

type AzureBlobConfig struct {
	ConnectionString string `mapstructure:"connection_string"`
	AccountName      string `mapstructure:"account_name"`
	AccountKey       string `mapstructure:"account_key"`
	Endpoint         string `mapstructure:"endpoint"`
}

// EvaluationConfig selects rating normalizations and the groups to evaluate.
type EvaluationConfig struct {
	RatingNormalization      string    `mapstructure:"rating_normalization" validate:"required"`
	UserRatingNormalization  string    `mapstructure:"user_rating_normalization" validate:"required"`
	QuadraticAmplification   bool      `mapstructure:"quadratic_amplification"`
	NormalizationC           float64   `mapstructure:"normalization_c"`
	NormalizationExpr        string    `mapstructure:"normalization_expr"`
	UseAllConstants          bool      `mapstructure:"use_all_constants"`
	ConstantsWithUserNorm    []float64 `mapstructure:"constants_with_user_norm" validate:"required_if=UseAllConstants true"`
	ConstantsWithoutUserNorm []float64 `mapstructure:"constants_without_user_norm" validate:"required_if=UseAllConstants true"`
	GroupTypes               []string  `mapstructure:"group_types" validate:"min=1,dive,required"`
	GroupSizes               []int     `mapstructure:"group_sizes" validate:"min=1,dive,gt=0"`
	TopK                     int       `mapstructure:"top_k" validate:"gt=0"`
	NumJobs                  int       `mapstructure:"n_jobs" validate:"gt=0"`
}

// NormalizationOptions returns the normalization options for a normalization constant.
func (c *EvaluationConfig) NormalizationOptions(constant float64) fairness.NormalizationOptions {
	return fairness.NormalizationOptions{
		RatingNormalization:     c.RatingNormalization,
		UserRatingNormalization: c.UserRatingNormalization,
		QuadraticAmplification:  c.QuadraticAmplification,
		Constant:                constant,
		Expression:              c.NormalizationExpr,
	}
}

// Constants returns the normalization constants to evaluate. If all constants are requested,
// the candidates depend on whether ratings are normalized per user.
func (c *EvaluationConfig) Constants() []float64 {
	if !c.UseAllConstants {
		return []float64{c.NormalizationC}
	}
	if c.UserRatingNormalization == fairness.IdentityUserNormalization {
		return c.ConstantsWithoutUserNorm
	}
	return c.ConstantsWithUserNorm
}

// OutputConfig locates reports.
type OutputConfig struct {
	Store       string `mapstructure:"store" validate:"required"`
	Format      string `mapstructure:"format" validate:"oneof=csv json"`
	ResultStore string `mapstructure:"result_store"`
	TablePrefix string `mapstructure:"table_prefix"`
}

func GetDefaultConfig() *Config {
	return &Config{
		Data: DataConfig{
			Store: "data/ml1m",
		},
		Evaluation: EvaluationConfig{
			UserRatingNormalization:  fairness.IdentityUserNormalization,
			ConstantsWithUserNorm:    floats.Span(make([]float64, 7), -0.6, 0.6),
			ConstantsWithoutUserNorm: floats.Span(make([]float64, 7), -3.0, 3.0),
			GroupTypes:               []string{"sim"},
			GroupSizes:               []int{2, 4, 8},
			TopK:                     fairness.DefaultTopK,
			NumJobs:                  1,
		},
		Output: OutputConfig{
			Store:  "results",
			Format: "csv",
		},
	}
}

func setDefault(v *viper.Viper) {
	defaultConfig := GetDefaultConfig()
	// [data]
	v.SetDefault("data.store", defaultConfig.Data.Store)
	// [evaluation]
	v.SetDefault("evaluation.user_rating_normalization", defaultConfig.Evaluation.UserRatingNormalization)
	v.SetDefault("evaluation.constants_with_user_norm", defaultConfig.Evaluation.ConstantsWithUserNorm)
	v.SetDefault("evaluation.constants_without_user_norm", defaultConfig.Evaluation.ConstantsWithoutUserNorm)
	v.SetDefault("evaluation.group_types", defaultConfig.Evaluation.GroupTypes)
	v.SetDefault("evaluation.group_sizes", defaultConfig.Evaluation.GroupSizes)
	v.SetDefault("evaluation.top_k", defaultConfig.Evaluation.TopK)
	v.SetDefault("evaluation.n_jobs", defaultConfig.Evaluation.NumJobs)
	// [output]
	v.SetDefault("output.store", defaultConfig.Output.Store)
	v.SetDefault("output.format", defaultConfig.Output.Format)
}

type configBinding struct {
	key  string
	env  string
	flag string
}

var bindings = []configBinding{
	{"data.store", "GORSE_DATA_STORE", "data-store"},
	{"data.s3.endpoint", "GORSE_S3_ENDPOINT", ""},
	{"data.s3.access_key_id", "GORSE_S3_ACCESS_KEY_ID", ""},
	{"data.s3.secret_access_key", "GORSE_S3_SECRET_ACCESS_KEY", ""},
	{"data.gcs.credentials_file", "GORSE_GCS_CREDENTIALS_FILE", ""},
	{"data.azure.connection_string", "GORSE_AZURE_CONNECTION_STRING", ""},
	{"data.azure.account_name", "GORSE_AZURE_ACCOUNT_NAME", ""},
	{"data.azure.account_key", "GORSE_AZURE_ACCOUNT_KEY", ""},
	{"evaluation.rating_normalization", "GORSE_RATING_NORMALIZATION", "rating-normalization"},
	{"evaluation.user_rating_normalization", "GORSE_USER_RATING_NORMALIZATION", "user-rating-normalization"},
	{"evaluation.quadratic_amplification", "", "use-quadratic-amplification"},
	{"evaluation.normalization_c", "GORSE_NORMALIZATION_C", "normalization-c"},
	{"evaluation.normalization_expr", "GORSE_NORMALIZATION_EXPR", "normalization-expr"},
	{"evaluation.use_all_constants", "", "use-all-constants"},
	{"evaluation.group_types", "GORSE_GROUP_TYPES", "group-types"},
	{"evaluation.group_sizes", "GORSE_GROUP_SIZES", "group-sizes"},
	{"evaluation.n_jobs", "GORSE_N_JOBS", "jobs"},
	{"output.store", "GORSE_OUTPUT_STORE", "output-store"},
	{"output.format", "GORSE_OUTPUT_FORMAT", "output-format"},
	{"output.result_store", "GORSE_RESULT_STORE", "result-store"},
	{"output.table_prefix", "GORSE_TABLE_PREFIX", ""},
}

// LoadConfig loads configuration from a TOML (or any format viper understands) file. Values
// are overridden by environment variables and then by changed command line flags. An empty
// path skips the file.
func LoadConfig(path string, flagSet *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefault(v)

	// bind environment variables and flags
	for _, binding := range bindings {
		if binding.env != "" {
			if err := v.BindEnv(binding.key, binding.env); err != nil {
				return nil, errors.Trace(err)
			}
		}
		if binding.flag != "" && flagSet != nil {
			if flag := flagSet.Lookup(binding.flag); flag != nil {
				if err := v.BindPFlag(binding.key, flag); err != nil {
					return nil, errors.Trace(err)
				}
			}
		}
	}

	// load config file
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, errors.Annotatef(err, "failed to open config file %s", path)
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Trace(err)
		}
	}

	// unmarshal config
	var conf Config
	if err := v.Unmarshal(&conf, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToWeakSliceHookFunc(","),
		mapstructure.StringToTimeDurationHookFunc(),
	))); err != nil {
		return nil, errors.Trace(err)
	}
	if err := conf.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &conf, nil
}

// Validate checks struct constraints and resolves normalization names, so that a run never
// starts with a normalization it cannot apply.
func (config *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(config); err != nil {
		return errors.NewNotValid(err, "invalid config")
	}
	for _, constant := range config.Evaluation.Constants() {
		if _, err := fairness.NewNormalizer(config.Evaluation.NormalizationOptions(constant)); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}
