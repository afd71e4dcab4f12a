package gcp

import (
	stderrors "errors"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/googleapis/gax-go/v2/apierror"
	pkgerrors "github.com/pkg/errors"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func restError(code int) error {
	return &googleapi.Error{Code: code, Message: "from the REST surface"}
}

func grpcError(code codes.Code) error {
	apiErr, ok := apierror.FromError(status.Error(code, "from the gRPC surface"))
	Expect(ok).To(BeTrue(), "the status error should convert to an APIError")
	return apiErr
}

var _ = Describe("Error classification", func() {
	Describe("Classify", func() {
		It("maps HTTP 403 to a PermissionError naming the resource", func() {
			classified := Classify("projects/test-project", restError(http.StatusForbidden))
			permErr := &PermissionError{}
			Expect(stderrors.As(classified, &permErr)).To(BeTrue())
			Expect(permErr.Resource).To(Equal("projects/test-project"))
		})
		It("maps gRPC PermissionDenied to a PermissionError", func() {
			classified := Classify("projects/test-project", grpcError(codes.PermissionDenied))
			permErr := &PermissionError{}
			Expect(stderrors.As(classified, &permErr)).To(BeTrue())
		})
		It("maps HTTP 409 to a ConflictError", func() {
			classified := Classify("pools/test-pool", restError(http.StatusConflict))
			conflictErr := &ConflictError{}
			Expect(stderrors.As(classified, &conflictErr)).To(BeTrue())
			Expect(conflictErr.Resource).To(Equal("pools/test-pool"))
		})
		It("maps HTTP 503 to a TransientError", func() {
			classified := Classify("pools/test-pool", restError(http.StatusServiceUnavailable))
			transientErr := &TransientError{}
			Expect(stderrors.As(classified, &transientErr)).To(BeTrue())
		})
		It("maps gRPC Unavailable to a TransientError", func() {
			classified := Classify("pools/test-pool", grpcError(codes.Unavailable))
			transientErr := &TransientError{}
			Expect(stderrors.As(classified, &transientErr)).To(BeTrue())
		})
		It("passes a 404 through unchanged for the caller to branch on", func() {
			err := restError(http.StatusNotFound)
			Expect(Classify("pools/test-pool", err)).To(BeIdenticalTo(err))
		})
		It("passes nil through", func() {
			Expect(Classify("pools/test-pool", nil)).To(BeNil())
		})
	})

	Describe("predicates", func() {
		It("recognizes not-found on both API surfaces", func() {
			Expect(IsNotFound(restError(http.StatusNotFound))).To(BeTrue())
			Expect(IsNotFound(grpcError(codes.NotFound))).To(BeTrue())
			Expect(IsNotFound(restError(http.StatusForbidden))).To(BeFalse())
		})
		It("recognizes already-exists on both API surfaces", func() {
			Expect(IsAlreadyExists(restError(http.StatusConflict))).To(BeTrue())
			Expect(IsAlreadyExists(grpcError(codes.AlreadyExists))).To(BeTrue())
			Expect(IsAlreadyExists(restError(http.StatusNotFound))).To(BeFalse())
		})
		It("sees through error wrapping", func() {
			wrapped := pkgerrors.Wrap(restError(http.StatusNotFound), "failed to get pool")
			Expect(IsNotFound(wrapped)).To(BeTrue())
		})
		It("does not classify plain errors", func() {
			plain := stderrors.New("some other failure")
			Expect(IsNotFound(plain)).To(BeFalse())
			Expect(IsPermissionDenied(plain)).To(BeFalse())
			Expect(IsTransient(plain)).To(BeFalse())
			Expect(Classify("pools/test-pool", plain)).To(BeIdenticalTo(plain))
		})
	})
})
