package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/myplayplanet/backend/internal/db"
	"github.com/myplayplanet/backend/internal/model"
	"github.com/myplayplanet/backend/internal/service"
)

const (
	sessionKey = "auth_session"
	accountKey = "auth_account"
)

// Guard holds what RequireSession needs to resolve a bearer session.
type Guard struct {
	sessions *service.SessionManager
	authz    *service.Authorizer
	accounts service.AccountStore
}

func NewGuard(sessions *service.SessionManager, authz *service.Authorizer, accounts service.AccountStore) *Guard {
	return &Guard{sessions: sessions, authz: authz, accounts: accounts}
}

// RequireSession admits requests carrying a live session whose owner holds
// permission. model.Default admits any session.
func RequireSession(g *Guard, permission model.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		token, ok := bearerToken(c)
		if !ok {
			abortJSON(c, http.StatusUnauthorized, "unauthorized")
			return
		}

		ctx := c.Request.Context()
		session, err := g.sessions.IsSessionValid(ctx, token)
		if err != nil {
			writeError(c, err)
			return
		}

		switch session.Target.Kind {
		case model.TargetHuman:
			account, err := g.loadAccount(c, session)
			if err != nil {
				writeError(c, err)
				return
			}
			if err := g.authz.HasPermission(ctx, account.ID, permission); err != nil {
				writeError(c, err)
				return
			}
			c.Set(accountKey, account)
		case model.TargetMachine:
			if err := g.authz.HasMachinePermission(session.Target.ID, permission); err != nil {
				writeError(c, err)
				return
			}
		default:
			writeError(c, fmt.Errorf("%w: session %s has target type %q", service.ErrInternal, session.ID, session.Target.Kind))
			return
		}

		c.Set(sessionKey, session)
		c.Next()
	}
}

func (g *Guard) loadAccount(c *gin.Context, session *model.Session) (*model.Account, error) {
	id, err := model.ParseID(model.TableAccount, session.Target.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: session %s target: %v", service.ErrInternal, session.ID, err)
	}
	account, err := g.accounts.GetAccountByID(c.Request.Context(), id)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, service.ErrUnauthorized
		}
		return nil, fmt.Errorf("%w: load account: %v", service.ErrInternal, err)
	}
	if account.Locked {
		return nil, service.ErrUnauthorized
	}
	return account, nil
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	return token, token != ""
}

// GetSession returns the session attached by RequireSession.
func GetSession(c *gin.Context) *model.Session {
	if value, ok := c.Get(sessionKey); ok {
		if session, ok := value.(*model.Session); ok {
			return session
		}
	}
	return nil
}

// GetAccount returns the account of a human session, nil for machines.
func GetAccount(c *gin.Context) *model.Account {
	if value, ok := c.Get(accountKey); ok {
		if account, ok := value.(*model.Account); ok {
			return account
		}
	}
	return nil
}

func CORSMiddleware(allowedOrigins []string) gin.HandlerFunc {
	originMap := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		originMap[trimmed] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" {
			if _, ok := originMap[origin]; ok {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
				c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")
				c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
			}
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
