package middlewares

import (
	_ "embed"
	"net/http"
	"strings"

	"kpitracker/utils"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	stringadapter "github.com/casbin/casbin/v2/persist/string-adapter"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

//go:embed authz_model.conf
var authzModel string

//go:embed authz_policy.csv
var authzPolicy string

// NewEnforcer builds the role policy: managers own /api/manager/*, staff
// /api/staff/*.
func NewEnforcer() (*casbin.Enforcer, error) {
	m, err := model.NewModelFromString(authzModel)
	if err != nil {
		return nil, errors.Wrap(err, "authz: load model")
	}
	enforcer, err := casbin.NewEnforcer(m, stringadapter.NewAdapter(authzPolicy))
	if err != nil {
		return nil, errors.Wrap(err, "authz: load policy")
	}
	return enforcer, nil
}

func SubjectFromRole(role string) string {
	role = strings.TrimSpace(strings.ToLower(role))
	if role == "" {
		role = "anonymous"
	}
	return "role:" + role
}

// Authorize must run after JWTMiddleware.
func Authorize(enforcer *casbin.Enforcer, log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := GetPrincipalFromContext(r.Context())
			if !ok {
				utils.HandleMessageResponse(w, r, "Authentication required", http.StatusUnauthorized)
				return
			}

			subject := SubjectFromRole(string(principal.Role))
			allowed, err := enforcer.Enforce(subject, r.URL.Path, r.Method)
			if err != nil {
				log.WithError(err).Error("authz: enforce failed")
				utils.HandleMessageResponse(w, r, "Internal server error", http.StatusInternalServerError)
				return
			}
			if !allowed {
				log.WithFields(logrus.Fields{
					"subject": subject,
					"path":    r.URL.Path,
					"method":  r.Method,
				}).Info("authz: access denied")
				utils.HandleMessageResponse(w, r, "Access denied", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
