// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nursery Contributors

package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
type Code string

const (
	CodeSourceStreamObserveUnavailable Code = "source.stream.observe.unavailable"
	CodeSourceVectorObserveUnavailable Code = "source.vector.observe.unavailable"
	CodeSourceVectorSampleUnavailable  Code = "source.vector.sample.unavailable"
	CodeSourceSampleInvalid            Code = "source.sample.invalid"
	CodeSourceIdentityNotFound         Code = "source.identity.get.not_found"
	CodeSourceBackendUnsupported       Code = "source.backend.unsupported"
	CodeSourceConnectFailure           Code = "source.connect.failure"
	CodeSourceCloseFailure             Code = "source.close.failure"

	CodeSnapshotNotReady Code = "snapshot.current.not_ready"

	CodeProjectionBasisInvalid      Code = "projection.basis.invalid_value"
	CodeProjectionDimensionMismatch Code = "projection.dimension.mismatch"
	CodeProjectionCloudNotReady     Code = "projection.cloud.not_ready"

	CodeHubSessionWriteFailure   Code = "hub.session.write.failure"
	CodeHubSessionUpgradeFailure Code = "hub.session.upgrade.failure"
	CodeHubClosed                Code = "hub.register.closed"

	CodeConfigLoadReadFailure      Code = "config.load.read.failure"
	CodeConfigParseInvalidFormat   Code = "config.parse.invalid_format"
	CodeConfigValidateInvalidValue Code = "config.validate.invalid_value"
	CodeConfigAlreadyExists        Code = "config.init.already_exists"

	CodeSecretInvalidInput   Code = "secrets.input.invalid_input"
	CodeSecretNotFound       Code = "secrets.get.not_found"
	CodeSecretStoreFailure   Code = "secrets.store.failure"
	CodeSecretDeleteFailure  Code = "secrets.delete.failure"
	CodeSecretListFailure    Code = "secrets.list.failure"
	CodeSecretResolveFailure Code = "secrets.resolve.failure"

	CodeServerRequestInvalid  Code = "server.request.invalid"
	CodeServerInternalFailure Code = "server.internal.failure"
	CodeServerStartFailure    Code = "server.start.failure"
	CodeServerShutdownFailure Code = "server.shutdown.failure"

	CodeCLIGatewayNotRunning Code = "cli.gateway.not_running"
	CodeCLIRequestFailure    Code = "cli.request.failure"
	CodeCLIResponseInvalid   Code = "cli.response.invalid"
	CodeCLISetupFailure      Code = "cli.setup.failure"
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

func FieldSessionID(value string) Attr {
	return Field("session_id", value)
}

func FieldSource(value string) Attr {
	return Field("source", value)
}

func FieldBackend(value string) Attr {
	return Field("backend", value)
}

func FieldCollection(value string) Attr {
	return Field("collection", value)
}

func FieldStreamKey(value string) Attr {
	return Field("stream_key", value)
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
		code = CodeServerInternalFailure
	}

	return oops.Code(code).With(flatten(fields)...).Wrap(err)
}

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

func IsNotFound(err error) bool {
	return reason(CodeOf(err)) == "not_found"
}

func IsNotReady(err error) bool {
	return reason(CodeOf(err)) == "not_ready"
}

func IsUnavailable(err error) bool {
	return reason(CodeOf(err)) == "unavailable"
}

func IsInvalidInput(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid" || r == "invalid_input" || r == "invalid_value" || r == "invalid_format"
}

func IsTimeout(err error) bool {
	return reason(CodeOf(err)) == "timeout"
}

func IsMismatch(err error) bool {
	return reason(CodeOf(err)) == "mismatch"
}

func HTTPStatus(err error) int {
	switch {
	case IsNotFound(err):
		return http.StatusNotFound
	case IsInvalidInput(err):
		return http.StatusBadRequest
	case IsNotReady(err), IsUnavailable(err):
		return http.StatusServiceUnavailable
	case IsTimeout(err):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func Join(errs ...error) error {
	return oops.Code(CodeServerInternalFailure).Wrap(stderrors.Join(errs...))
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
