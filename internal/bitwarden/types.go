package bitwarden

// Status is the response of `bw status`.
type Status struct {
	ServerURL string `json:"serverUrl"`
	LastSync  string `json:"lastSync"`
	UserEmail string `json:"userEmail"`
	UserID    string `json:"userId"`
	Status    string `json:"status"`
}

// Vault states reported by `bw status`.
const (
	StatusUnlocked        = "unlocked"
	StatusLocked          = "locked"
	StatusUnauthenticated = "unauthenticated"
)

// Folder is one entry of `bw list folders`. The synthetic "No Folder" entry
// has a nil ID.
type Folder struct {
	Object string  `json:"object"`
	ID     *string `json:"id"`
	Name   string  `json:"name"`
}

// ItemType is the kind of vault entry (1 login, 2 secure note, 3 card,
// 4 identity). Fields are derived from what an item carries, not its type.
type ItemType int

// Item is one entry of `bw list items` / `bw get item`. Optional values are
// pointers so that a JSON null can be told apart from an empty string.
type Item struct {
	Object         string   `json:"object"`
	ID             string   `json:"id"`
	OrganizationID *string  `json:"organizationId"`
	FolderID       *string  `json:"folderId"`
	Type           ItemType `json:"type"`
	Name           string   `json:"name"`
	Notes          *string  `json:"notes"`
	Favorite       bool     `json:"favorite"`
	Fields         []Field  `json:"fields"`
	Login          *Login   `json:"login"`
	CollectionIDs  []string `json:"collectionIds"`
	RevisionDate   string   `json:"revisionDate"`
}

// Login holds login-specific data.
type Login struct {
	Username             *string `json:"username"`
	Password             *string `json:"password"`
	Totp                 *string `json:"totp"`
	PasswordRevisionDate *string `json:"passwordRevisionDate"`
	URIs                 []URI   `json:"uris"`
}

// URI is a URL associated with a login.
type URI struct {
	URI   string `json:"uri"`
	Match *int   `json:"match"`
}

// Field is a custom field on an item.
type Field struct {
	Name  string  `json:"name"`
	Value *string `json:"value"`
	Type  int     `json:"type"`
}

// FieldValue returns the custom field named name.
func (i *Item) FieldValue(name string) (string, bool) {
	for _, f := range i.Fields {
		if f.Name == name {
			if f.Value == nil {
				return "", true
			}
			return *f.Value, true
		}
	}
	return "", false
}
