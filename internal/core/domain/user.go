package domain

import "time"

// User models a global identity. The password hash is owned by the store
// and never travels on this type.
type User struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	ProjectKey string    `json:"project,omitempty"`
	WebToken   string    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// Center groups projects; only its name reaches clients.
type Center struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Project is a tenant boundary. Secret is the realm's HMAC key.
type Project struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	State    string `json:"state"`
	Secret   string `json:"-"`
	CenterID string `json:"-"`
}

// Account is what the store resolves for an identity in one round trip:
// the user, its project and center (if bound) and the role held in that
// center.
type Account struct {
	User       User
	Project    *Project
	CenterName string
	Role       *Role
}

// Realm returns the signing realm of the bound project, or nil.
func (a *Account) Realm() *Realm {
	if a == nil || a.Project == nil {
		return nil
	}
	return &Realm{
		Namespace: a.CenterName,
		Partition: a.Project.Name,
		Secret:    a.Project.Secret,
	}
}

// Realm identifies a namespace/partition pair and its signing secret.
type Realm struct {
	Namespace string
	Partition string
	Secret    string
}

// NewUser carries signup data into the store.
type NewUser struct {
	Username   string
	Password   string // optional; hashed by the store
	ProjectKey string // optional
}

// ProjectView is the serialized project sub-document of an AuthUser.
type ProjectView struct {
	ID     string  `json:"id"`
	Center *string `json:"center"`
	Name   string  `json:"name"`
}

// AuthUser is the per-request response view of an authenticated identity.
type AuthUser struct {
	ID       string       `json:"id"`
	Role     *Role        `json:"role"`
	Project  *ProjectView `json:"project"`
	Username string       `json:"username"`
	GToken   string       `json:"g_token"`
	PToken   *string      `json:"p_token,omitempty"`
}

// NewAuthUser projects an account into its response view, without tokens.
func NewAuthUser(a *Account) *AuthUser {
	au := &AuthUser{
		ID:       a.User.ID,
		Role:     a.Role,
		Username: a.User.Username,
	}
	if a.Project != nil {
		pv := &ProjectView{ID: ProjectIDPrefix + a.Project.ID, Name: a.Project.Name}
		if a.CenterName != "" {
			center := a.CenterName
			pv.Center = &center
		}
		au.Project = pv
	}
	return au
}
