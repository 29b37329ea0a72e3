// Package searchdex embeds engine-neutral full-text search into a Go
// program. Objects are declared once with typed search fields and can then
// be indexed into and queried from Solr, RediSearch or an embedded bleve
// index without engine-specific code.
//
// # Declaring indexes
//
//	type Note struct {
//	    ID      string    `search:"-"`
//	    Body    string    `search:"text,text,document"`
//	    Author  string    `search:"author"`
//	    PubDate time.Time `search:"pub_date"`
//	}
//
//	func (n Note) ObjectType() searchdex.Type { return noteType }
//	func (n Note) ObjectKey() string          { return n.ID }
//
//	idx, _ := searchdex.IndexFor[Note](noteType)
//
// # Indexing and searching
//
//	client, _ := searchdex.New(ctx, searchdex.WithBleve(""), searchdex.WithIndexes(idx))
//	_, _ = client.Update(ctx, noteType, []searchdex.Object{note})
//
//	rs, _ := client.Search(client.Query().AutoQuery("quick fox").OrderBy("-pub_date"))
//	for rec, err := range rs.All(ctx) { ... }
package searchdex
