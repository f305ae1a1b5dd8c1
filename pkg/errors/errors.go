// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package errors

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
// Codes follow the "area.op.reason" layout; the area selects the error
// category and the process exit code.
type Code string

const (
	CodeInputReadFailure          Code = "input.read.failure"
	CodeInputParseInvalidFormat   Code = "input.parse.invalid_format"
	CodeInputValidateInvalidValue Code = "input.validate.invalid_value"

	CodeConfigLoadReadFailure      Code = "config.load.read.failure"
	CodeConfigParseInvalidFormat   Code = "config.parse.invalid_format"
	CodeConfigValidateInvalidValue Code = "config.validate.invalid_value"
	CodeConfigModeInvalid          Code = "config.mode.invalid"
	CodeConfigBackendUnsupported   Code = "config.backend.unsupported"

	CodeProvingEngineFailure      Code = "proving.engine.failure"
	CodeProvingProgramNotFound    Code = "proving.program.not_found"
	CodeProvingJournalInvalid     Code = "proving.journal.invalid"
	CodeProvingCommitmentMismatch Code = "proving.commitment.mismatch"
	CodeProvingWinnerOutOfRange   Code = "proving.winner.invalid_value"
	CodeProvingLogAppendConflict  Code = "proving.log.append.conflict"

	CodeVerificationSealInvalid     Code = "verification.seal.invalid"
	CodeVerificationImageMismatch   Code = "verification.image_id.mismatch"
	CodeVerificationJournalMismatch Code = "verification.journal.mismatch"
	CodeVerificationResultMismatch  Code = "verification.result.mismatch"

	CodeArtifactEncodeFailure       Code = "artifact.encode.failure"
	CodeArtifactDecodeInvalidFormat Code = "artifact.decode.invalid_format"
	CodeArtifactReadFailure         Code = "artifact.read.failure"
	CodeArtifactPersistFailure      Code = "artifact.persist.failure"
	CodeArtifactPersistConflict     Code = "artifact.persist.conflict"
	CodeArtifactSinkUnsupported     Code = "artifact.sink.unsupported"
	CodeArtifactLedgerDatabase      Code = "artifact.ledger.database_failure"

	CodeCLIUsageInvalid  Code = "cli.usage.invalid"
	CodeCLISetupFailure  Code = "cli.setup.failure"
	CodeCLIOutputFailure Code = "cli.output.failure"
	CodeCLIInitConflict  Code = "cli.init.conflict"

	CodeInternalFailure Code = "internal.failure"
)

// Exit codes returned by the vnns binary, one per error category.
const (
	ExitOK           = 0
	ExitFailure      = 1
	ExitUsage        = 2
	ExitInput        = 3
	ExitProving      = 4
	ExitVerification = 5
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// FieldValue creates a structured error field.
func FieldValue(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

// Field is kept as the primary helper for terse callsites.
func Field(key string, value any) Attr {
	return FieldValue(key, value)
}

func FieldRound(value int) Attr {
	return Field("round", value)
}

func FieldChunk(value int) Attr {
	return Field("chunk", value)
}

func FieldPath(value string) Attr {
	return Field("path", value)
}

func FieldProgram(value string) Attr {
	return Field("program", value)
}

func FieldBackend(value string) Attr {
	return Field("backend", value)
}

func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(code).With(flatten(fields)...).New(msg)
}

func Errorf(code Code, format string, args ...any) error {
	return oops.Code(code).Errorf(format, args...)
}

func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).Wrapf(err, format, args...)
}

// With adds structured fields to an existing error chain.
func With(err error, fields ...Attr) error {
	if err == nil {
		return nil
	}

	code := CodeOf(err)
	if code == "" {
		code = CodeInternalFailure
	}

	return oops.Code(code).With(flatten(fields)...).Wrap(err)
}

// CodeOf returns the innermost code in err's chain. oops descends through
// fmt %w wrappers and errors.Join, so a coded cause always beats its wrapper.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}

	if code, ok := oopsErr.Code().(Code); ok {
		return code
	}

	if code, ok := oopsErr.Code().(string); ok {
		return Code(code)
	}

	return Code(fmt.Sprintf("%v", oopsErr.Code()))
}

func FieldsOf(err error) map[string]any {
	if err == nil {
		return nil
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}

	return oopsErr.Context()
}

func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

func IsInputError(err error) bool {
	return area(CodeOf(err)) == "input"
}

func IsConfigError(err error) bool {
	return area(CodeOf(err)) == "config"
}

func IsProvingError(err error) bool {
	return area(CodeOf(err)) == "proving"
}

func IsVerificationError(err error) bool {
	return area(CodeOf(err)) == "verification"
}

func IsArtifactError(err error) bool {
	return area(CodeOf(err)) == "artifact"
}

func IsConflict(err error) bool {
	return reason(CodeOf(err)) == "conflict"
}

func IsInvalidInput(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid" || r == "invalid_value" || r == "invalid_format"
}

// ExitCode maps an error to the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case IsConfigError(err), HasCode(err, CodeCLIUsageInvalid):
		return ExitUsage
	case IsInputError(err):
		return ExitInput
	case IsProvingError(err):
		return ExitProving
	case IsVerificationError(err):
		return ExitVerification
	default:
		return ExitFailure
	}
}

func Join(errs ...error) error {
	return oops.Code(CodeInternalFailure).Wrap(stderrors.Join(errs...))
}

func flatten(fields []Attr) []any {
	pairs := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		pairs = append(pairs, field.Key, field.Value)
	}
	return pairs
}

func area(code Code) string {
	if code == "" {
		return ""
	}

	raw := string(code)
	idx := strings.Index(raw, ".")
	if idx == -1 {
		return raw
	}
	return raw[:idx]
}

func reason(code Code) string {
	if code == "" {
		return ""
	}

	raw := string(code)
	idx := strings.LastIndex(raw, ".")
	if idx == -1 || idx == len(raw)-1 {
		return raw
	}
	return raw[idx+1:]
}
