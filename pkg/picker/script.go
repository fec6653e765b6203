package picker

// bindingName is the page-side function that reports events to Go.
const bindingName = "__inspectaiEmit"

// pickerScript installs window.__inspectai. It assigns stable numeric ids
// to elements and reports input through the binding; all class and overlay
// changes are driven from Go.
const pickerScript = `
(function() {
    'use strict';
    if (window.__inspectai) return;

    const ids = new WeakMap();
    const nodes = new Map();
    let nextId = 1;
    let armed = false;

    function idOf(el) {
        let id = ids.get(el);
        if (!id) {
            id = nextId++;
            ids.set(el, id);
            nodes.set(id, new WeakRef(el));
        }
        return id;
    }

    function nodeOf(id) {
        const ref = nodes.get(id);
        const el = ref && ref.deref();
        if (!el || !el.isConnected) {
            nodes.delete(id);
            return null;
        }
        return el;
    }

    // cleanOuterHTML returns el's markup without the picker's own classes.
    function cleanOuterHTML(el) {
        const wasHighlighted = el.classList.contains('inspect-ai-highlight');
        const wasSelected = el.classList.contains('inspect-ai-selected');
        el.classList.remove('inspect-ai-highlight', 'inspect-ai-selected');
        if (el.classList.length === 0) el.removeAttribute('class');
        const html = el.outerHTML;
        if (wasHighlighted) el.classList.add('inspect-ai-highlight');
        if (wasSelected) el.classList.add('inspect-ai-selected');
        return html;
    }

    function emit(kind, el) {
        const payload = { kind: kind, id: el ? idOf(el) : 0 };
        try { window.` + bindingName + `(JSON.stringify(payload)); } catch (e) {}
    }

    function inOverlay(el) {
        return el && el.closest && el.closest('#inspect-ai-overlay');
    }

    function onOver(e) { if (!inOverlay(e.target)) emit('hover', e.target); }
    function onOut(e) { if (!inOverlay(e.target)) emit('unhover', e.target); }
    function onClick(e) {
        if (inOverlay(e.target)) return;
        e.preventDefault();
        e.stopPropagation();
        emit('click', e.target);
    }
    function onKey(e) {
        if (e.key === 'Escape' || e.keyCode === 27) {
            e.preventDefault();
            e.stopPropagation();
            emit('escape', null);
        }
    }

    function ensureStyle() {
        if (document.getElementById('inspect-ai-style')) return;
        const style = document.createElement('style');
        style.id = 'inspect-ai-style';
        style.textContent =
            '.inspect-ai-highlight{outline:2px dashed #4f46e5 !important;outline-offset:1px;cursor:crosshair !important}' +
            '.inspect-ai-selected{outline:2px solid #16a34a !important;outline-offset:1px}' +
            '#inspect-ai-overlay{position:fixed;bottom:16px;right:16px;z-index:2147483647;display:flex;gap:8px;' +
            'align-items:center;padding:8px 12px;background:#111827;color:#f9fafb;border-radius:6px;' +
            'font:13px system-ui,sans-serif;box-shadow:0 4px 12px rgba(0,0,0,.3)}' +
            '#inspect-ai-overlay button{cursor:pointer;border:0;border-radius:4px;padding:4px 8px}';
        (document.head || document.documentElement).appendChild(style);
    }

    let selected = null;

    function hideOverlay() {
        const overlay = document.getElementById('inspect-ai-overlay');
        if (overlay) overlay.remove();
        document.removeEventListener('keydown', onOverlayKey, true);
    }

    function onOverlayKey(e) {
        if (e.key === 'Escape' || e.keyCode === 27) {
            e.preventDefault();
            e.stopPropagation();
            closeOverlay();
        }
    }

    function closeOverlay() {
        hideOverlay();
        if (selected) selected.classList.remove('inspect-ai-selected');
        selected = null;
    }

    window.__inspectai = {
        arm: function() {
            if (armed) return true;
            armed = true;
            ensureStyle();
            document.body.style.cursor = 'crosshair';
            document.addEventListener('mouseover', onOver, true);
            document.addEventListener('mouseout', onOut, true);
            document.addEventListener('click', onClick, true);
            document.addEventListener('keydown', onKey, true);
            return true;
        },
        disarm: function() {
            armed = false;
            if (document.body) document.body.style.cursor = '';
            document.removeEventListener('mouseover', onOver, true);
            document.removeEventListener('mouseout', onOut, true);
            document.removeEventListener('click', onClick, true);
            document.removeEventListener('keydown', onKey, true);
            document.querySelectorAll('.inspect-ai-highlight').forEach(function(el) {
                el.classList.remove('inspect-ai-highlight');
            });
            return true;
        },
        addClass: function(id, cls) {
            const el = nodeOf(id);
            if (!el) return false;
            ensureStyle();
            el.classList.add(cls);
            return true;
        },
        removeClass: function(id, cls) {
            const el = nodeOf(id);
            if (!el) return false;
            el.classList.remove(cls);
            return true;
        },
        outer: function(id) {
            const el = nodeOf(id);
            if (!el) return { html: '', parent: '' };
            const parent = el.parentElement ? el.parentElement.tagName.toLowerCase() : 'body';
            return { html: cleanOuterHTML(el), parent: parent };
        },
        showOverlay: function(id) {
            hideOverlay();
            selected = nodeOf(id);
            const overlay = document.createElement('div');
            overlay.id = 'inspect-ai-overlay';
            const label = document.createElement('span');
            label.textContent = 'Element Selected';
            const copy = document.createElement('button');
            copy.textContent = 'Copy HTML';
            copy.addEventListener('click', function() {
                if (!selected) return;
                navigator.clipboard.writeText(cleanOuterHTML(selected)).then(function() {
                    copy.textContent = 'Copied!';
                    setTimeout(function() { copy.textContent = 'Copy HTML'; }, 1000);
                });
            });
            const close = document.createElement('button');
            close.textContent = '×';
            close.addEventListener('click', closeOverlay);
            overlay.append(label, copy, close);
            document.body.appendChild(overlay);
            document.addEventListener('keydown', onOverlayKey, true);
            return true;
        },
        hideOverlay: function() {
            hideOverlay();
            selected = null;
            return true;
        }
    };
})();
`
