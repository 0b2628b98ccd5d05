package scaffold

// configFile documents the common knobs; every key is optional.
const configFile = `# tabi configuration. Every key here is optional; the values shown for
# commented keys are the defaults.
site:
  pages: pages
  public: public
  # base_path: /docs
  # markdown_class: markdown-body
  # jsx_import_source: preact
  # runtime_module: "@tabi/runtime"

server:
  host: localhost
  port: 7331
  # open: true
  # isolate: false

build:
  out_dir: dist

render:
  command: node
  args:
    - node_modules/@tabi/runtime/render.mjs

# Enable a style pipeline by adding a uno.config.ts next to your pages.
# styles:
#   command: unocss
`

const packageFile = `{
  "name": "{{.Name}}",
  "private": true,
  "type": "module",
  "dependencies": {
    "@tabi/runtime": "^0.1.0",
    "preact": "^10.22.0"
  }
}
`

// documentFile stays a literal: the JSX double braces below are not
// template actions.
const documentFile = `// Optional document shell. Delete this file to fall back to the
// built-in document. Keep the __tabi_data script and the __tabi_root
// div: hydration reads both by id.
export default function Document({ title, data, bundleSrc, stylesheetHref, children }) {
  return (
    <html lang="en">
      <head>
        <meta charSet="utf-8" />
        <meta name="viewport" content="width=device-width, initial-scale=1" />
        <title>{title}</title>
        <link rel="icon" href="/favicon.svg" />
        {stylesheetHref && <link rel="stylesheet" href={stylesheetHref} />}
      </head>
      <body>
        <div id="__tabi_root">{children}</div>
        <script
          id="__tabi_data"
          type="application/json"
          dangerouslySetInnerHTML={{ __html: data }}
        />
        <script type="module" src={bundleSrc} />
      </body>
    </html>
  );
}
`

const layoutFile = `export const frontmatter = {
  title: "{{.Title}}",
};

export default function Layout({ children }) {
  return (
    <div class="site">
      <header class="site-header">
        <a href="/">{{.Title}}</a>
      </header>
      <main class="site-main">{children}</main>
    </div>
  );
}
`

const indexFile = `---
title: Welcome
---

# Welcome to {{.Title}}

This page is ` + "`pages/index.md`" + `. Edit it and save; the dev server
reloads the browser for you.

- Add a component page: ` + "`pages/about.tsx`" + `
- Add a nested route: ` + "`pages/blog/hello.md`" + `
- Wrap a directory with a layout: ` + "`pages/blog/_layout.tsx`" + `

Run ` + "`tabi build`" + ` when you are ready to publish.
`

const faviconFile = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 32 32">
  <rect width="32" height="32" rx="6" fill="#1f2937"/>
  <path d="M8 12h16M16 12v12" stroke="#fbbf24" stroke-width="3" stroke-linecap="round" fill="none"/>
</svg>
`
