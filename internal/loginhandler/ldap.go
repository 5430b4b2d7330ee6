package loginhandler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/go-ldap/ldap/v3"

	"github.com/mwaldhauser/loginguard/internal/config"
	"github.com/mwaldhauser/loginguard/internal/models"
)

// LdapMode distinguishes the two directory-backed handlers. In slave
// mode the directory only verifies credentials and the local store must
// already know the user. In master mode the directory is authoritative:
// users without a local record are synthesized from their directory
// entry.
type LdapMode int

const (
	LdapSlave LdapMode = iota
	LdapMaster
)

func (m LdapMode) String() string {
	if m == LdapMaster {
		return "master"
	}
	return "slave"
}

// LdapHandler verifies credentials by binding against an LDAP
// directory.
type LdapHandler struct {
	mode   LdapMode
	cfg    config.LDAPConfig
	users  UserSource
	logger *slog.Logger

	// dial is swappable so tests can stub the directory.
	dial func() (ldapConn, error)
}

// ldapConn is the subset of *ldap.Conn the handler uses.
type ldapConn interface {
	Bind(username, password string) error
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	Close() error
}

func NewLdapHandler(mode LdapMode, cfg config.LDAPConfig, users UserSource, logger *slog.Logger) *LdapHandler {
	h := &LdapHandler{
		mode:   mode,
		cfg:    cfg,
		users:  users,
		logger: logger,
	}
	h.dial = func() (ldapConn, error) {
		return ldap.DialURL(cfg.URL, ldap.DialWithDialer(&net.Dialer{Timeout: cfg.ConnectTimeout}))
	}
	return h
}

func (h *LdapHandler) CheckLogin(ctx context.Context, username, password string) *models.LoginResult {
	entry, err := h.verifyAgainstDirectory(username, password)
	if err != nil {
		if !errors.Is(err, errDirectoryRejected) {
			h.logger.Error("ldap login check failed", slog.Any("error", err))
		}
		return models.NewLoginResult(models.LoginFailed)
	}

	user, err := h.users.GetByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			h.logger.Error("failed to load user after ldap bind", slog.Any("error", err))
			return models.NewLoginResult(models.LoginFailed)
		}
		if h.mode == LdapSlave {
			h.logger.Warn("ldap user has no local record, rejecting in slave mode",
				slog.String("username", username))
			return models.NewLoginResult(models.LoginFailed)
		}
		user = h.userFromEntry(username, entry)
		if creator, ok := h.users.(UserCreator); ok {
			created, err := creator.Create(ctx, user)
			if err != nil {
				h.logger.Error("failed to persist directory user",
					slog.String("username", username), slog.Any("error", err))
			} else {
				user = created
			}
		}
	}

	if user.Status == "disabled" {
		return models.NewLoginResult(models.LoginAccountDisabled)
	}

	return models.SuccessLoginResult(user)
}

var errDirectoryRejected = errors.New("directory rejected credentials")

// verifyAgainstDirectory binds with the service account, locates the
// user's DN and rebinds with the supplied password.
func (h *LdapHandler) verifyAgainstDirectory(username, password string) (*ldap.Entry, error) {
	conn, err := h.dial()
	if err != nil {
		return nil, fmt.Errorf("ldap dial %s: %w", h.cfg.URL, err)
	}
	defer conn.Close()

	if h.cfg.BindDN != "" {
		if err := conn.Bind(h.cfg.BindDN, h.cfg.BindPassword); err != nil {
			return nil, fmt.Errorf("ldap service bind: %w", err)
		}
	}

	filter := fmt.Sprintf(h.cfg.UserFilter, ldap.EscapeFilter(username))
	result, err := conn.Search(ldap.NewSearchRequest(
		h.cfg.BaseDN,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 2, 0, false,
		filter,
		[]string{"dn", "uid", "cn", "mail"},
		nil,
	))
	if err != nil {
		return nil, fmt.Errorf("ldap search: %w", err)
	}
	if len(result.Entries) != 1 {
		return nil, errDirectoryRejected
	}

	entry := result.Entries[0]
	if err := conn.Bind(entry.DN, password); err != nil {
		return nil, errDirectoryRejected
	}

	return entry, nil
}

// userFromEntry builds a user record from the directory entry for
// master mode when no local record exists yet.
func (h *LdapHandler) userFromEntry(username string, entry *ldap.Entry) *models.User {
	return &models.User{
		Username: username,
		Name:     entry.GetAttributeValue("cn"),
		Email:    entry.GetAttributeValue("mail"),
		Status:   "active",
		Role:     "user",
	}
}
