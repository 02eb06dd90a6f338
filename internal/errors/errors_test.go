package errors

import (
	stderrors "errors"
	"net/http"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestErrors(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Structured Errors Suite")
}

var _ = Describe("Structured Errors", func() {
	Describe("AppError", func() {
		It("should create error with correct properties", func() {
			err := New(ErrorTypeValidation, "test message")

			Expect(err.Type).To(Equal(ErrorTypeValidation))
			Expect(err.Message).To(Equal("test message"))
			Expect(err.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(err.Details).To(BeEmpty())
			Expect(err.Cause).To(BeNil())
		})

		It("should implement the error interface", func() {
			err := New(ErrorTypeValidation, "test message")
			Expect(err.Error()).To(Equal("validation: test message"))
		})

		It("should include details in the error string when present", func() {
			err := New(ErrorTypeValidation, "test message").WithDetails("extra info")
			Expect(err.Error()).To(Equal("validation: test message (extra info)"))
		})

		It("should wrap an underlying error", func() {
			originalErr := stderrors.New("original error")
			wrapped := Wrap(originalErr, ErrorTypeDatabase, "operation failed")

			Expect(wrapped.Type).To(Equal(ErrorTypeDatabase))
			Expect(wrapped.Cause).To(Equal(originalErr))
			Expect(wrapped.Unwrap()).To(Equal(originalErr))
		})

		It("should format wrapped errors with arguments", func() {
			originalErr := stderrors.New("connection refused")
			wrapped := Wrapf(originalErr, ErrorTypeNetwork, "failed to connect to %s:%d", "localhost", 5432)

			Expect(wrapped.Message).To(Equal("failed to connect to localhost:5432"))
		})
	})

	Describe("HTTP status mapping", func() {
		It("maps every error type to the right status code", func() {
			cases := []struct {
				errorType  ErrorType
				statusCode int
			}{
				{ErrorTypeValidation, http.StatusBadRequest},
				{ErrorTypeAuth, http.StatusUnauthorized},
				{ErrorTypeNotFound, http.StatusNotFound},
				{ErrorTypeConflict, http.StatusConflict},
				{ErrorTypeTimeout, http.StatusRequestTimeout},
				{ErrorTypeRateLimit, http.StatusTooManyRequests},
				{ErrorTypeDatabase, http.StatusInternalServerError},
				{ErrorTypeNetwork, http.StatusInternalServerError},
				{ErrorTypeInternal, http.StatusInternalServerError},
				{ErrorTypeSafetyBlocked, http.StatusUnprocessableEntity},
				{ErrorTypeSchemaInvalid, http.StatusBadGateway},
			}
			for _, tc := range cases {
				Expect(New(tc.errorType, "msg").StatusCode).To(Equal(tc.statusCode))
			}
		})
	})

	Describe("predefined constructors", func() {
		It("creates a curator-specific safety-blocked error", func() {
			err := NewSafetyBlockedError("create_post: free legal aid")
			Expect(err.Type).To(Equal(ErrorTypeSafetyBlocked))
			Expect(err.Message).To(ContainSubstring("free legal aid"))
		})

		It("creates a schema-invalid error wrapping the parse cause", func() {
			cause := stderrors.New("unexpected token")
			err := NewSchemaInvalidError("action list", cause)
			Expect(err.Type).To(Equal(ErrorTypeSchemaInvalid))
			Expect(err.Cause).To(Equal(cause))
		})

		It("creates a not found error", func() {
			err := NewNotFoundError("organization")
			Expect(err.Message).To(Equal("organization not found"))
		})
	})

	Describe("type checks", func() {
		It("identifies AppError types correctly", func() {
			validationErr := NewValidationError("test")
			Expect(IsType(validationErr, ErrorTypeValidation)).To(BeTrue())
			Expect(IsType(validationErr, ErrorTypeAuth)).To(BeFalse())
		})

		It("treats non-AppError values as internal", func() {
			regularErr := stderrors.New("regular error")
			Expect(GetType(regularErr)).To(Equal(ErrorTypeInternal))
			Expect(GetStatusCode(regularErr)).To(Equal(http.StatusInternalServerError))
		})
	})

	Describe("safe error messages", func() {
		It("passes validation messages through but genericizes everything else", func() {
			Expect(SafeErrorMessage(NewValidationError("bad input"))).To(Equal("bad input"))
			Expect(SafeErrorMessage(New(ErrorTypeDatabase, "leaked internal detail"))).To(Equal("An internal error occurred"))
			Expect(SafeErrorMessage(stderrors.New("panic trace"))).To(Equal("An unexpected error occurred"))
		})
	})

	Describe("LogFields", func() {
		It("includes cause and details when present", func() {
			cause := stderrors.New("connection failed")
			err := Wrapf(cause, ErrorTypeDatabase, "query failed").WithDetails("table: posts")

			fields := LogFields(err)
			Expect(fields["error_type"]).To(Equal("database"))
			Expect(fields["error_details"]).To(Equal("table: posts"))
			Expect(fields["underlying_error"]).To(Equal("connection failed"))
		})

		It("omits optional keys for a bare error", func() {
			fields := LogFields(stderrors.New("regular"))
			Expect(fields).NotTo(HaveKey("error_type"))
		})
	})

	Describe("Chain", func() {
		It("returns nil for no errors", func() {
			Expect(Chain()).To(BeNil())
		})

		It("returns the single error unchanged", func() {
			e := stderrors.New("only")
			Expect(Chain(e)).To(Equal(e))
		})

		It("filters nils and joins the rest", func() {
			e1, e2 := stderrors.New("first"), stderrors.New("second")
			chained := Chain(e1, nil, e2)
			Expect(chained.Error()).To(Equal("first -> second"))
		})
	})
})
