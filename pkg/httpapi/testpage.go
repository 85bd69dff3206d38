package httpapi

import "net/http"

// handleTestPage serves a minimal dependency-free debug client
func (s *Server) handleTestPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(testPageHTML))
}

const testPageHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>Agent Relay Test</title>
    <style>
      body { font-family: -apple-system, system-ui, sans-serif; margin: 2rem; }
      pre { background: #111; color: #eee; padding: 1rem; border-radius: 8px; height: 240px; overflow: auto; }
    </style>
  </head>
  <body>
    <button id="new">New Session</button>
    <input id="msg" placeholder="Type message" style="width: 300px;"/>
    <button id="send">Send</button>
    <div><code id="sid"></code></div>
    <pre id="log"></pre>
    <script>
      const log = (x) => { const el = document.getElementById('log'); el.textContent += x + "\n"; el.scrollTop = el.scrollHeight; };
      let sessionId = null;
      let evtSource = null;
      document.getElementById('new').onclick = async () => {
        const res = await fetch('/sessions', {method: 'POST', headers: {'Content-Type': 'application/json'}, body: JSON.stringify({})});
        const ses = await res.json();
        sessionId = ses.id; document.getElementById('sid').textContent = 'Session: ' + sessionId;
        if (evtSource) evtSource.close();
        evtSource = new EventSource('/sessions/' + sessionId + '/events');
        evtSource.addEventListener('message', ev => log('[message] ' + ev.data));
        evtSource.addEventListener('assistant_chunk', ev => log('[assistant_chunk] ' + ev.data));
        evtSource.addEventListener('http_exchange', ev => log('[http] ' + ev.data));
      };
      document.getElementById('send').onclick = async () => {
        if (!sessionId) return;
        const content = document.getElementById('msg').value;
        await fetch('/sessions/' + sessionId + '/messages', {method: 'POST', headers: {'Content-Type': 'application/json'}, body: JSON.stringify({content})});
      };
    </script>
  </body>
</html>
`
