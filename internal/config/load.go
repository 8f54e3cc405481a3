package config

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	lgerrors "github.com/gxo-labs/logguard/pkg/logguard/v1/errors"
	"github.com/spf13/afero"
	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"
)

// SupportedSchemaVersionConstraint is the major schema version this build accepts.
const SupportedSchemaVersionConstraint = "v1"

// LoadJob parses and validates a job document: JSON schema first, then
// strict YAML decoding, the schemaVersion check and logical validation.
func LoadJob(jobYAML []byte, filePathHint string) (*Job, error) {
	if len(jobYAML) == 0 {
		return nil, lgerrors.NewConfigError("job content cannot be empty", nil)
	}

	if err := ValidateWithSchema(jobYAML); err != nil {
		return nil, lgerrors.NewConfigError(fmt.Sprintf("job '%s' failed schema validation", filePathHint), err)
	}

	var job Job
	if err := yamlUnmarshalStrict(jobYAML, &job); err != nil {
		return nil, lgerrors.NewConfigError(fmt.Sprintf("failed to parse job YAML '%s'", filePathHint), err)
	}
	job.FilePath = filePathHint

	if err := checkSchemaVersion(job.SchemaVersion, filePathHint); err != nil {
		return nil, err
	}

	if validationErrs := ValidateJobStructure(&job); len(validationErrs) > 0 {
		var errorMessages []string
		for _, vErr := range validationErrs {
			errorMessages = append(errorMessages, vErr.Error())
		}
		combinedMessage := fmt.Sprintf("job '%s' has %d validation error(s):\n- %s",
			filePathHint, len(errorMessages), strings.Join(errorMessages, "\n- "))
		return nil, lgerrors.NewValidationError(combinedMessage, validationErrs[0])
	}

	assignInternalTaskIDs(&job)
	return &job, nil
}

// LoadJobFromFile reads a job from fs.
func LoadJobFromFile(fs afero.Fs, filePath string) (*Job, error) {
	if filePath == "" {
		return nil, lgerrors.NewConfigError("job file path cannot be empty", nil)
	}
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return nil, lgerrors.NewConfigError(fmt.Sprintf("failed to get absolute path for '%s'", filePath), err)
	}
	data, err := afero.ReadFile(fs, absPath)
	if err != nil {
		return nil, lgerrors.NewConfigError(fmt.Sprintf("failed to read job file '%s'", absPath), err)
	}
	return LoadJob(data, absPath)
}

func checkSchemaVersion(version, filePathHint string) error {
	if version == "" {
		return lgerrors.NewValidationError(fmt.Sprintf("job '%s' is missing required 'schemaVersion' field", filePathHint), nil)
	}
	v := version
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return lgerrors.NewValidationError(fmt.Sprintf("job '%s' has invalid 'schemaVersion' format: '%s'", filePathHint, version), nil)
	}
	if semver.Major(v) != SupportedSchemaVersionConstraint {
		return lgerrors.NewValidationError(
			fmt.Sprintf("job '%s' schemaVersion '%s' is not compatible with engine requirement '%s'",
				filePathHint, version, SupportedSchemaVersionConstraint),
			nil,
		)
	}
	return nil
}

// assignInternalTaskIDs keys tasks by name. Names are validated unique.
func assignInternalTaskIDs(job *Job) {
	for i := range job.Tasks {
		job.Tasks[i].InternalID = job.Tasks[i].Name
	}
}

// yamlUnmarshalStrict rejects unknown fields.
func yamlUnmarshalStrict(in []byte, out interface{}) error {
	decoder := yaml.NewDecoder(bytes.NewReader(in))
	decoder.KnownFields(true)
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("YAML parsing error: %w", err)
	}
	return nil
}
