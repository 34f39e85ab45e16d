// Package provider defines the contract every credential backend implements
// for secretmenu.
//
// A backend (a Bitwarden vault, a pass store, Terraform outputs) is wrapped
// in a Provider that lists items and reads individual fields lazily. The
// menu never sees secret values until the user picks an item and a field.
//
// # Field Capabilities
//
// Each item declares the fields it can produce at listing time. ReadField
// must reject undeclared fields with a *CapabilityError before any backend
// call, so a stale menu can never trigger a speculative lookup:
//
//	if err := provider.CheckField(p.Name(), it, field); err != nil {
//	    return "", err
//	}
//
// # Error Handling
//
// Providers use the error types defined in this package:
//   - CapabilityError for undeclared fields (matches item.ErrFieldNotDeclared)
//   - NotFoundError for items or fields missing from the backend
//   - AuthError when the backend cannot be unlocked
//   - ConstructionError for unusable configuration, reported at startup
//
// # Security Considerations
//
// Providers must never log field values or session tokens; wrap them in
// logging.Secret when they have to appear in a format string. Secrets typed
// by the user arrive through a Prompter as a secure.SecureBuffer.
//
// # Testing
//
// RunContractTests exercises the behaviour every implementation shares and
// is meant to be called from each provider's own tests with a scripted
// backend.
package provider
