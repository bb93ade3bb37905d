package auth

import "sync"

// Identity tracks the signed-in user for this device. The engine is a
// single-device client: one current user at a time, consulted by the
// report mirror ("mine" filter) and the ownership checks.
type Identity struct {
	mu   sync.RWMutex
	user *User
}

func NewIdentity() *Identity {
	return &Identity{}
}

// Current returns the signed-in user, or ok=false when nobody is.
func (i *Identity) Current() (User, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.user == nil {
		return User{}, false
	}
	return *i.user, true
}

func (i *Identity) SignIn(u User) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.user = &u
}

func (i *Identity) SignOut() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.user = nil
}
