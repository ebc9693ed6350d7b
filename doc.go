// Package futurism emits placeholder elements for fragments that render after
// the page has loaded, and resolves them once the client asks for the
// fragment.
//
// A placeholder carries a signed descriptor of what to render: either a
// reference to one entity (data-sgid) or a partial name plus locals
// (data-signed-params). Entities in locals travel as references and are
// located again on the resolving side, so a placeholder never carries
// caller-controlled data the server has not signed.
//
// Typical wiring:
//
//	cfg, err := config.Load("futurism.yaml")
//	locator := gid.NewLocator(cfg.App)
//	locator.MustRegister("Post", posts)
//	f, err := futurism.New(cfg, locator, futurism.WithTemplates(os.DirFS("views")))
//	html, err := f.Futurize(ctx, futurism.Object{Entity: post}, futurism.Options{}, nil)
//
// and on the fragment endpoint:
//
//	html, err := f.Render(ctx, signedParams, sgid)
package futurism
