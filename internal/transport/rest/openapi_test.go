package rest_test

import (
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestRest(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Rest Suite")
}

var _ = Describe("OpenAPI contract", func() {
	var doc *openapi3.T

	BeforeEach(func() {
		loader := openapi3.NewLoader()
		var err error
		doc, err = loader.LoadFromFile("../../../api/openapi.yml")
		Expect(err).ToNot(HaveOccurred())
		Expect(doc.Validate(loader.Context)).To(Succeed())
	})

	It("documents the customer purchase flow", func() {
		for _, path := range []string{
			"/auth/register",
			"/auth/login",
			"/customers/me/balance",
			"/customers/me/limit-increase",
			"/purchase-requests/{id}/accept",
			"/purchase-requests/{id}/reject",
			"/payments",
			"/payments/upcoming",
			"/transactions/{id}",
		} {
			Expect(doc.Paths.Find(path)).ToNot(BeNil(), "missing path %s", path)
		}
	})

	It("documents the merchant flow", func() {
		for _, path := range []string{
			"/merchants/me",
			"/merchants/me/stats",
			"/merchant/purchase-requests",
			"/merchant/purchase-requests/{id}/cancel",
			"/merchant/transactions",
			"/merchant/withdrawals",
			"/merchant/settlements",
		} {
			Expect(doc.Paths.Find(path)).ToNot(BeNil(), "missing path %s", path)
		}
	})

	It("documents the admin flow", func() {
		for _, path := range []string{
			"/admin/limit-requests",
			"/admin/limit-requests/{id}",
			"/admin/withdrawals",
			"/admin/withdrawals/{id}",
			"/admin/revenue",
		} {
			Expect(doc.Paths.Find(path)).ToNot(BeNil(), "missing path %s", path)
		}
	})

	It("prefixes every server with the API version", func() {
		Expect(doc.Servers).ToNot(BeEmpty())
		for _, srv := range doc.Servers {
			Expect(srv.URL).To(ContainSubstring("/api/v1"))
		}
	})
})
