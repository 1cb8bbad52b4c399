// Package config holds the configuration of a strata run.
//
// A run reads one logical dataset from a list of files, optionally with
// friend datasets, aliases and a selection, and may write an output dataset.
// The configuration is organized into sections:
//   - Reader: input files, friends, aliases, selection and iteration
//   - Writer: output path, write mode, commit mode and parquet settings
//   - Remote: cache directory and credentials for s3:// and gs:// paths
//   - Observability: logging, tracing and the metrics listener
//
// # Usage
//
//	cfg, err := config.LoadFile("run.yaml", "DecayTree")
//	if err != nil {
//		return err
//	}
//
// # Environment Variable Substitution
//
// ${VAR_NAME} anywhere in the file is replaced by the variable's value
// before parsing, so credentials and paths can stay out of the file:
//
//	reader:
//	  files:
//	    - s3://${DATA_BUCKET}/run1.parquet
//	remote:
//	  credentials_file: ${GOOGLE_APPLICATION_CREDENTIALS}
package config
